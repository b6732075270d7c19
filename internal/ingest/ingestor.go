package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/M365x55907051/juice-shop/internal/auth"
	apierrors "github.com/M365x55907051/juice-shop/internal/errors"
	"github.com/M365x55907051/juice-shop/internal/logger"
	"github.com/M365x55907051/juice-shop/internal/metrics"
	"github.com/M365x55907051/juice-shop/internal/models"
	"github.com/M365x55907051/juice-shop/internal/repository"
	"github.com/M365x55907051/juice-shop/internal/storage"
	"github.com/M365x55907051/juice-shop/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Result describes an accepted or tolerated ingestion
type Result struct {
	// Redirect is the location the client is sent to
	Redirect string
	// Record is the new profile image, or nil when nothing changed
	Record *models.ProfileImage
}

// Ingestor decides whether a profile image is accepted and persists it
type Ingestor struct {
	store   storage.ImageStore
	users   repository.UserRepository
	fetcher Fetcher
	policy  Policy
}

// NewIngestor creates an Ingestor. fetcher may be nil, in which case URL
// submissions are always kept as links.
func NewIngestor(store storage.ImageStore, users repository.UserRepository, fetcher Fetcher, policy Policy) *Ingestor {
	return &Ingestor{
		store:   store,
		users:   users,
		fetcher: fetcher,
		policy:  policy.withDefaults(),
	}
}

// Policy returns the effective policy
func (i *Ingestor) Policy() Policy {
	return i.policy
}

// Authorize rejects anonymous callers with the obscured error
func (i *Ingestor) Authorize(session *auth.Session) *apierrors.APIError {
	if session.Authenticated() {
		return nil
	}
	remoteAddr := ""
	if session != nil {
		remoteAddr = session.RemoteAddr
	}
	return apierrors.BlockedIllegalActivity(remoteAddr)
}

// Reject converts a failure into the API error rendered to the client and
// records it. Errors that are not API errors become 500s.
func (i *Ingestor) Reject(source models.ImageSource, err error) *apierrors.APIError {
	apiErr := classify(err)

	outcome := metrics.OutcomeRejected
	if apiErr.Code == apierrors.ErrInternalError {
		outcome = metrics.OutcomeFailed
		logger.Log.Error("Profile image ingestion failed",
			logger.WithSource(string(source)),
			zap.Error(err),
		)
	} else {
		logger.Log.Info("Profile image rejected",
			logger.WithSource(string(source)),
			zap.String("code", string(apiErr.Code)),
			zap.String("reason", apiErr.Message),
		)
	}
	metrics.RecordIngestion(string(source), outcome, string(apiErr.Code))

	return apiErr
}

func classify(err error) *apierrors.APIError {
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr), errors.Is(err, ErrFieldTooLarge):
		return apierrors.PayloadTooLarge()
	case errors.Is(err, ErrMalformedForm), errors.Is(err, io.ErrUnexpectedEOF):
		return apierrors.MalformedBody()
	case errors.Is(err, ErrNoFilePart):
		return apierrors.IllegalFileType()
	default:
		return apierrors.InternalError("internal server error")
	}
}

// IngestFile accepts an uploaded image stream. The stream is read up to one
// byte past the size limit; its type is decided by sniffing, the declared
// type is only logged.
func (i *Ingestor) IngestFile(ctx context.Context, session *auth.Session, file io.Reader, declaredType string) (*Result, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "ingest.file")
	defer span.End()

	res, err := i.ingestFile(ctx, span, session, file, declaredType)
	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, i.Reject(models.ImageSourceFile, err)
	}
	return res, nil
}

func (i *Ingestor) ingestFile(ctx context.Context, span trace.Span, session *auth.Session, file io.Reader, declaredType string) (*Result, error) {
	if apiErr := i.Authorize(session); apiErr != nil {
		return nil, apiErr
	}
	if file == nil {
		return nil, apierrors.IllegalFileType()
	}
	telemetry.SetIngestAttributes(span, string(models.ImageSourceFile), session.User.ID)

	data, err := io.ReadAll(io.LimitReader(file, i.policy.MaxBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, apierrors.IllegalFileType()
	}
	if int64(len(data)) > i.policy.MaxBytes {
		return nil, apierrors.PayloadTooLarge()
	}

	detected := sniff(data)
	if !i.policy.Allows(detected) {
		logger.Log.Debug("Sniffed type not allowed",
			logger.WithUserID(session.User.ID),
			zap.String("declared", declaredType),
			zap.String("detected", detected),
		)
		apiErr := apierrors.UnsupportedMediaType(detected)
		if declaredType != "" && declaredType != detected {
			apiErr = apiErr.WithDetails("declared as " + declaredType)
		}
		return nil, apiErr
	}

	record, err := i.storeBytes(ctx, session.User, models.ImageSourceFile, storage.ExtensionForContentType(detected), detected, data)
	if err != nil {
		return nil, err
	}

	return &Result{Redirect: i.policy.RedirectTo, Record: record}, nil
}

// IngestURL accepts a remote image reference. http and https URLs are
// fetched and stored when they yield an allowed image; otherwise the link
// itself is recorded. Empty or unparsable input changes nothing.
func (i *Ingestor) IngestURL(ctx context.Context, session *auth.Session, rawURL string) (*Result, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "ingest.url")
	defer span.End()

	res, err := i.ingestURL(ctx, span, session, rawURL)
	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, i.Reject(models.ImageSourceURL, err)
	}
	return res, nil
}

func (i *Ingestor) ingestURL(ctx context.Context, span trace.Span, session *auth.Session, rawURL string) (*Result, error) {
	if apiErr := i.Authorize(session); apiErr != nil {
		return nil, apiErr
	}
	telemetry.SetIngestAttributes(span, string(models.ImageSourceURL), session.User.ID)

	unchanged := &Result{Redirect: i.policy.RedirectTo}

	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return unchanged, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		logger.Log.Info("Ignoring unparsable image URL", logger.WithUserID(session.User.ID), zap.Error(err))
		return unchanged, nil
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return unchanged, nil
		}
	case "":
		record, err := i.storeLink(ctx, session.User, rawURL)
		if err != nil {
			return nil, err
		}
		return &Result{Redirect: i.policy.RedirectTo, Record: record}, nil
	default:
		logger.Log.Info("Ignoring image URL with unsupported scheme",
			logger.WithUserID(session.User.ID),
			zap.String("scheme", u.Scheme),
		)
		return unchanged, nil
	}

	data, detected, err := i.fetch(ctx, u.String())
	if err != nil {
		logger.Log.Warn("Error retrieving user profile image, keeping link",
			logger.WithUserID(session.User.ID),
			zap.String("url", rawURL),
			zap.Error(err),
		)
		record, err := i.storeLink(ctx, session.User, rawURL)
		if err != nil {
			return nil, err
		}
		return &Result{Redirect: i.policy.RedirectTo, Record: record}, nil
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if !urlExtensions[ext] || storage.ContentTypeForExtension(ext) != detected {
		ext = storage.ExtensionForContentType(detected)
	}

	record, err := i.storeBytes(ctx, session.User, models.ImageSourceURL, ext, detected, data)
	if err != nil {
		return nil, err
	}
	return &Result{Redirect: i.policy.RedirectTo, Record: record}, nil
}

func (i *Ingestor) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	if i.fetcher == nil {
		return nil, "", errors.New("remote fetching disabled")
	}

	data, err := i.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, "", err
	}

	detected := sniff(data)
	if !i.policy.Allows(detected) {
		return nil, "", fmt.Errorf("remote content type %s not allowed", detected)
	}
	return data, detected, nil
}

// storeBytes writes the image under a fresh key and only then replaces the
// record. The previous object is removed once the record points elsewhere.
func (i *Ingestor) storeBytes(ctx context.Context, user *models.User, source models.ImageSource, ext, contentType string, data []byte) (*models.ProfileImage, error) {
	previous, err := i.users.GetProfileImage(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile image: %w", err)
	}

	uploaded, err := i.store.PutProfileImage(ctx, user.ID, ext, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store profile image: %w", err)
	}

	record := &models.ProfileImage{
		UserID:      user.ID,
		Source:      source,
		Location:    uploaded.URL,
		StorageKey:  uploaded.Key,
		ContentType: contentType,
		Size:        uploaded.Size,
	}
	if err := i.users.SaveProfileImage(ctx, record); err != nil {
		i.removeObject(ctx, uploaded.Key)
		return nil, fmt.Errorf("failed to save profile image: %w", err)
	}

	i.cleanup(ctx, previous, record.StorageKey)
	i.accepted(user, record)
	return record, nil
}

func (i *Ingestor) storeLink(ctx context.Context, user *models.User, link string) (*models.ProfileImage, error) {
	previous, err := i.users.GetProfileImage(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile image: %w", err)
	}

	record := &models.ProfileImage{
		UserID:   user.ID,
		Source:   models.ImageSourceLink,
		Location: link,
	}
	if err := i.users.SaveProfileImage(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save profile image: %w", err)
	}

	i.cleanup(ctx, previous, "")
	i.accepted(user, record)
	return record, nil
}

// cleanup removes the previous stored object when the new record no longer uses it
func (i *Ingestor) cleanup(ctx context.Context, previous *models.ProfileImage, currentKey string) {
	if previous == nil || previous.StorageKey == "" || previous.StorageKey == currentKey {
		return
	}
	i.removeObject(ctx, previous.StorageKey)
}

func (i *Ingestor) removeObject(ctx context.Context, key string) {
	if err := i.store.DeleteFile(ctx, key); err != nil {
		logger.Log.Warn("Failed to delete profile image object",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func (i *Ingestor) accepted(user *models.User, record *models.ProfileImage) {
	metrics.RecordIngestion(string(record.Source), metrics.OutcomeAccepted, "")
	if record.Size > 0 {
		metrics.RecordIngestedBytes(string(record.Source), int(record.Size))
	}
	logger.Log.Info("Profile image updated",
		logger.WithUserID(user.ID),
		logger.WithSource(string(record.Source)),
		zap.String("location", record.Location),
		zap.Int64("size", record.Size),
	)
}
