package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and print a session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		return login(loginEmail, loginPassword)
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the user the current token belongs to",
	RunE: func(cmd *cobra.Command, args []string) error {
		return whoami()
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("password")
}

func login(email, password string) error {
	resp, err := newClient().R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"email":    email,
			"password": password,
		}).
		Post("/rest/user/login")
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return responseError(resp)
	}

	if output == "json" {
		fmt.Println(resp.String())
		return nil
	}

	var result struct {
		Authentication struct {
			Token string `json:"token"`
			Email string `json:"umail"`
		} `json:"authentication"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	success.Printf("✓ Logged in as %s\n", result.Authentication.Email)
	fmt.Printf("export JUICE_SHOP_TOKEN=%s\n", result.Authentication.Token)
	return nil
}

func whoami() error {
	resp, err := newClient().R().Get("/rest/user/whoami")
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return responseError(resp)
	}

	if output == "json" {
		fmt.Println(resp.String())
		return nil
	}

	var result struct {
		User struct {
			ID           string `json:"id"`
			Email        string `json:"email"`
			ProfileImage string `json:"profileImage"`
		} `json:"user"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if result.User.ID == "" {
		fmt.Println("Not logged in")
		return nil
	}

	bold.Printf("\n📋 Profile Information\n")
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Printf("ID: %s\n", result.User.ID)
	fmt.Printf("Email: %s\n", result.User.Email)
	fmt.Printf("Profile Image: %s\n\n", result.User.ProfileImage)
	return nil
}
