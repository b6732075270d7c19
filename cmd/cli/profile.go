package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage your profile image",
}

var uploadFileCmd = &cobra.Command{
	Use:   "upload-file <path>",
	Short: "Replace your profile image with a local file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireToken(); err != nil {
			return err
		}
		return uploadFile(args[0])
	},
}

var uploadURLCmd = &cobra.Command{
	Use:   "upload-url <image-url>",
	Short: "Replace your profile image with a remote image",
	Long: `Ask the server to fetch an image and use it as your profile image.
If the server cannot fetch it, the URL itself is stored as your image link.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireToken(); err != nil {
			return err
		}
		return uploadURL(args[0])
	},
}

func init() {
	profileCmd.AddCommand(uploadFileCmd)
	profileCmd.AddCommand(uploadURLCmd)
}

func uploadFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}

	resp, err := newClient().R().
		SetHeader("Accept", "application/json").
		SetFile("file", path).
		Post("/profile/image/file")
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	return reportIngestion(resp)
}

func uploadURL(imageURL string) error {
	resp, err := newClient().R().
		SetHeader("Accept", "application/json").
		SetFormData(map[string]string{"imageUrl": imageURL}).
		Post("/profile/image/url")
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	return reportIngestion(resp)
}

// reportIngestion prints the outcome. Success is a redirect back to the profile page.
func reportIngestion(resp *resty.Response) error {
	if resp.StatusCode() != http.StatusFound {
		return responseError(resp)
	}

	location := resp.Header().Get("Location")
	if output == "json" {
		fmt.Printf("{\"redirect\":%q}\n", location)
		return nil
	}
	success.Printf("✓ Profile image updated (see %s)\n", location)
	return nil
}
