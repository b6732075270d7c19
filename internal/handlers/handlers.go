package handlers

import (
	"embed"
	"html/template"

	"github.com/M365x55907051/juice-shop/internal/auth"
	"github.com/M365x55907051/juice-shop/internal/ingest"
	"github.com/M365x55907051/juice-shop/internal/repository"
	"github.com/M365x55907051/juice-shop/internal/util"
)

//go:embed templates/*.tmpl assets/*
var embedded embed.FS

var pageTemplates = template.Must(template.ParseFS(embedded, "templates/*.tmpl"))

// Handlers contains all HTTP handlers for the shop's profile surface
type Handlers struct {
	auth      auth.ServiceInterface
	users     repository.UserRepository
	ingestor  *ingest.Ingestor
	errorPage util.ErrorPage
	appName   string
	basePath  string
	uploadDir string
}

// Options configures NewHandlers
type Options struct {
	AppName  string
	Banner   string
	BasePath string
	// UploadDir is served under UploadsPath when images are stored locally
	UploadDir string
}

// NewHandlers creates a new handlers instance
func NewHandlers(authService auth.ServiceInterface, users repository.UserRepository, ingestor *ingest.Ingestor, opts Options) *Handlers {
	return &Handlers{
		auth:      authService,
		users:     users,
		ingestor:  ingestor,
		errorPage: util.ErrorPage{AppName: opts.AppName, Banner: opts.Banner},
		appName:   opts.AppName,
		basePath:  opts.BasePath,
		uploadDir: opts.UploadDir,
	}
}
