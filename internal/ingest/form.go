package ingest

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

// maxTextFieldBytes caps non-file form fields
const maxTextFieldBytes = 4 << 10

var (
	// ErrMalformedForm means the multipart stream ended before its closing boundary
	ErrMalformedForm = errors.New("multipart: unexpected end of form")
	// ErrNoFilePart means the form has no file part under the expected name
	ErrNoFilePart = errors.New("multipart: no file part")
	// ErrFieldTooLarge means a text field exceeded maxTextFieldBytes
	ErrFieldTooLarge = errors.New("multipart: text field too large")
)

// FormReader streams a multipart/form-data body part by part
type FormReader struct {
	mr   *multipart.Reader
	body *closingTracker
}

// NewFormReader wraps the request body. A request that is not multipart has
// no file part; a multipart request without a boundary is malformed.
func NewFormReader(r *http.Request) (*FormReader, error) {
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || (mediaType != "multipart/form-data" && mediaType != "multipart/mixed") {
		return nil, ErrNoFilePart
	}
	boundary := params["boundary"]
	if boundary == "" || r.Body == nil {
		return nil, ErrMalformedForm
	}

	body := newClosingTracker(r.Body, boundary)
	return &FormReader{mr: multipart.NewReader(body, boundary), body: body}, nil
}

// nextPart returns the next part. multipart.Reader also returns a bare io.EOF
// when the stream stops inside part headers, so EOF only counts as the end of
// the form once the closing delimiter has been read off the body.
func (f *FormReader) nextPart() (*multipart.Part, error) {
	part, err := f.mr.NextPart()
	if err == io.EOF {
		if !f.body.seen {
			return nil, ErrMalformedForm
		}
		return nil, io.EOF
	}
	if err != nil {
		return nil, formError(err)
	}
	return part, nil
}

// closingTracker passes the body through and records whether the closing
// delimiter "--boundary--" went by at the start of a line
type closingTracker struct {
	r     io.Reader
	delim []byte
	tail  []byte
	seen  bool
}

func newClosingTracker(r io.Reader, boundary string) *closingTracker {
	// The leading newline lets a body open directly on the closing delimiter
	return &closingTracker{
		r:     r,
		delim: []byte("\n--" + boundary + "--"),
		tail:  []byte("\n"),
	}
}

func (t *closingTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 && !t.seen {
		window := append(t.tail, p[:n]...)
		if bytes.Contains(window, t.delim) {
			t.seen = true
		}
		if keep := len(t.delim) - 1; len(window) > keep {
			window = window[len(window)-keep:]
		}
		t.tail = append(t.tail[:0], window...)
	}
	return n, err
}

// formError keeps body size errors intact and folds the rest into ErrMalformedForm
func formError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return ErrMalformedForm
}

func discard(part *multipart.Part) error {
	defer part.Close()
	if _, err := io.Copy(io.Discard, part); err != nil {
		return formError(err)
	}
	return nil
}

// drain consumes the remaining parts up to the closing boundary
func (f *FormReader) drain() error {
	for {
		part, err := f.nextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := discard(part); err != nil {
			return err
		}
	}
}

// FilePart skips ahead to the file part named field and returns a stream of
// its content with the declared Content-Type. The stream reports io.EOF only
// once the rest of the form has been read to its closing boundary, so a
// truncated body always surfaces as ErrMalformedForm.
func (f *FormReader) FilePart(field string) (io.ReadCloser, string, error) {
	for {
		part, err := f.nextPart()
		if err == io.EOF {
			return nil, "", ErrNoFilePart
		}
		if err != nil {
			return nil, "", err
		}

		if part.FormName() == field && part.FileName() != "" {
			return &fileStream{part: part, form: f}, part.Header.Get("Content-Type"), nil
		}

		if err := discard(part); err != nil {
			return nil, "", err
		}
	}
}

// TextField reads the text field named field, draining the whole form.
// ok is false when the field is absent.
func (f *FormReader) TextField(field string) (value string, ok bool, err error) {
	for {
		part, err := f.nextPart()
		if err == io.EOF {
			return value, ok, nil
		}
		if err != nil {
			return "", false, err
		}

		if ok || part.FormName() != field || part.FileName() != "" {
			if err := discard(part); err != nil {
				return "", false, err
			}
			continue
		}

		buf, err := io.ReadAll(io.LimitReader(part, maxTextFieldBytes+1))
		part.Close()
		if err != nil {
			return "", false, formError(err)
		}
		if len(buf) > maxTextFieldBytes {
			return "", false, ErrFieldTooLarge
		}
		value, ok = string(buf), true
	}
}

type fileStream struct {
	part   *multipart.Part
	form   *FormReader
	closed bool
}

func (s *fileStream) Read(p []byte) (int, error) {
	n, err := s.part.Read(p)
	if err == io.EOF {
		s.closed = true
		s.part.Close()
		if derr := s.form.drain(); derr != nil {
			return n, derr
		}
		return n, io.EOF
	}
	if err != nil {
		return n, formError(err)
	}
	return n, nil
}

func (s *fileStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.part.Close()
}

// ReadURLField extracts a text field from a multipart or urlencoded body.
// Other content types yield ok=false.
func ReadURLField(r *http.Request, field string) (value string, ok bool, err error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		form, err := NewFormReader(r)
		if errors.Is(err, ErrNoFilePart) {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		return form.TextField(field)
	case mediaType == "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return "", false, formError(err)
		}
		if _, present := r.PostForm[field]; !present {
			return "", false, nil
		}
		return r.PostForm.Get(field), true, nil
	default:
		return "", false, nil
	}
}
