package ingest

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartRequest(t *testing.T, build func(w *multipart.Writer)) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	build(w)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/profile/image/file", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestFilePartSkipsOtherFields(t *testing.T) {
	req := multipartRequest(t, func(w *multipart.Writer) {
		require.NoError(t, w.WriteField("note", "hello"))
		fw, err := w.CreateFormFile("file", "cat.jpg")
		require.NoError(t, err)
		fw.Write(jpegBytes)
		require.NoError(t, w.WriteField("after", "trailing"))
	})

	form, err := NewFormReader(req)
	require.NoError(t, err)

	file, declared, err := form.FilePart("file")
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, "application/octet-stream", declared)

	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, jpegBytes, data)
}

func TestFilePartMissing(t *testing.T) {
	req := multipartRequest(t, func(w *multipart.Writer) {
		require.NoError(t, w.WriteField("file", "not a file part"))
	})

	form, err := NewFormReader(req)
	require.NoError(t, err)

	_, _, err = form.FilePart("file")
	assert.ErrorIs(t, err, ErrNoFilePart)
}

func TestNewFormReaderRejectsNonMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/profile/image/file", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")

	_, err := NewFormReader(req)
	assert.ErrorIs(t, err, ErrNoFilePart)
}

// multipartBody renders a form and returns its bytes and Content-Type
func multipartBody(t *testing.T, build func(w *multipart.Writer)) ([]byte, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	build(w)
	require.NoError(t, w.Close())
	return body.Bytes(), w.FormDataContentType()
}

// readFilePart reads the "file" part of body cut to keep bytes
func readFilePart(t *testing.T, body []byte, contentType string, keep int) ([]byte, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/profile/image/file", bytes.NewReader(body[:keep]))
	req.Header.Set("Content-Type", contentType)

	form, err := NewFormReader(req)
	if err != nil {
		return nil, err
	}
	file, _, err := form.FilePart("file")
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func TestFilePartTruncatedBody(t *testing.T) {
	full, contentType := multipartBody(t, func(w *multipart.Writer) {
		fw, err := w.CreateFormFile("file", "cat.jpg")
		require.NoError(t, err)
		fw.Write(jpegBytes)
	})

	// cut before the closing boundary
	_, err := readFilePart(t, full, contentType, len(full)-60)
	assert.ErrorIs(t, err, ErrMalformedForm)

	// cut inside the first boundary line
	_, err = readFilePart(t, full, contentType, 42)
	assert.ErrorIs(t, err, ErrMalformedForm)
}

func TestFilePartDetectsEveryCutPoint(t *testing.T) {
	full, contentType := multipartBody(t, func(w *multipart.Writer) {
		require.NoError(t, w.WriteField("note", "hello"))
		fw, err := w.CreateFormFile("file", "cat.jpg")
		require.NoError(t, err)
		fw.Write(jpegBytes)
	})

	// Everything short of "--boundary--" is an unexpected end of form
	closing := len(full) - len("\r\n")
	for keep := 0; keep < closing; keep++ {
		_, err := readFilePart(t, full, contentType, keep)
		if !assert.ErrorIs(t, err, ErrMalformedForm, "keep=%d of %d", keep, len(full)) {
			return
		}
	}

	for _, keep := range []int{closing, len(full)} {
		data, err := readFilePart(t, full, contentType, keep)
		require.NoError(t, err, "keep=%d", keep)
		assert.Equal(t, jpegBytes, data)
	}
}

func TestReadURLFieldDetectsEveryCutPoint(t *testing.T) {
	full, contentType := multipartBody(t, func(w *multipart.Writer) {
		require.NoError(t, w.WriteField("imageUrl", "https://cataas.com/cat"))
	})

	closing := len(full) - len("\r\n")
	for keep := 0; keep < closing; keep++ {
		req := httptest.NewRequest(http.MethodPost, "/profile/image/url", bytes.NewReader(full[:keep]))
		req.Header.Set("Content-Type", contentType)

		_, _, err := ReadURLField(req, "imageUrl")
		if !assert.ErrorIs(t, err, ErrMalformedForm, "keep=%d of %d", keep, len(full)) {
			return
		}
	}
}

func TestNewFormReaderRequiresBoundary(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/profile/image/file", strings.NewReader("--x--\r\n"))
	req.Header.Set("Content-Type", "multipart/form-data")

	_, err := NewFormReader(req)
	assert.ErrorIs(t, err, ErrMalformedForm)
}

func TestNewFormReaderAcceptsEmptyForm(t *testing.T) {
	req := multipartRequest(t, func(w *multipart.Writer) {})

	form, err := NewFormReader(req)
	require.NoError(t, err)
	_, _, err = form.FilePart("file")
	assert.ErrorIs(t, err, ErrNoFilePart)
}

func TestFilePartTruncatedAfterFile(t *testing.T) {
	req := multipartRequest(t, func(w *multipart.Writer) {
		fw, err := w.CreateFormFile("file", "cat.jpg")
		require.NoError(t, err)
		fw.Write(jpegBytes)
		require.NoError(t, w.WriteField("after", strings.Repeat("x", 200)))
	})
	full, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	req.Body = io.NopCloser(bytes.NewReader(full[:len(full)-100]))

	form, err := NewFormReader(req)
	require.NoError(t, err)
	file, _, err := form.FilePart("file")
	require.NoError(t, err)

	_, err = io.ReadAll(file)
	assert.ErrorIs(t, err, ErrMalformedForm)
}

func TestFilePartBodyLimit(t *testing.T) {
	req := multipartRequest(t, func(w *multipart.Writer) {
		fw, err := w.CreateFormFile("file", "cat.jpg")
		require.NoError(t, err)
		fw.Write(bytes.Repeat([]byte{0x01}, 4096))
	})
	req.Body = http.MaxBytesReader(httptest.NewRecorder(), req.Body, 1024)

	form, err := NewFormReader(req)
	require.NoError(t, err)
	file, _, err := form.FilePart("file")
	require.NoError(t, err)

	_, err = io.ReadAll(file)
	var maxErr *http.MaxBytesError
	assert.ErrorAs(t, err, &maxErr)
}

func TestReadURLFieldMultipart(t *testing.T) {
	req := multipartRequest(t, func(w *multipart.Writer) {
		require.NoError(t, w.WriteField("imageUrl", "https://cataas.com/cat"))
	})

	value, ok, err := ReadURLField(req, "imageUrl")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://cataas.com/cat", value)
}

func TestReadURLFieldURLEncoded(t *testing.T) {
	form := url.Values{"imageUrl": {"cataas.com/cat"}}
	req := httptest.NewRequest(http.MethodPost, "/profile/image/url", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	value, ok, err := ReadURLField(req, "imageUrl")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "cataas.com/cat", value)
}

func TestReadURLFieldAbsentAndOversize(t *testing.T) {
	req := multipartRequest(t, func(w *multipart.Writer) {
		require.NoError(t, w.WriteField("other", "x"))
	})
	_, ok, err := ReadURLField(req, "imageUrl")
	require.NoError(t, err)
	assert.False(t, ok)

	req = multipartRequest(t, func(w *multipart.Writer) {
		require.NoError(t, w.WriteField("imageUrl", strings.Repeat("a", maxTextFieldBytes+1)))
	})
	_, _, err = ReadURLField(req, "imageUrl")
	assert.ErrorIs(t, err, ErrFieldTooLarge)

	req = httptest.NewRequest(http.MethodPost, "/profile/image/url", strings.NewReader(`{"imageUrl":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	_, ok, err = ReadURLField(req, "imageUrl")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "MALFORMED_BODY", string(classify(ErrMalformedForm).Code))
	assert.Equal(t, "MALFORMED_BODY", string(classify(io.ErrUnexpectedEOF).Code))
	assert.Equal(t, "ILLEGAL_FILE_TYPE", string(classify(ErrNoFilePart).Code))
	assert.Equal(t, "PAYLOAD_TOO_LARGE", string(classify(&http.MaxBytesError{Limit: 1}).Code))
	assert.Equal(t, "PAYLOAD_TOO_LARGE", string(classify(ErrFieldTooLarge).Code))
	assert.Equal(t, "INTERNAL_ERROR", string(classify(io.ErrClosedPipe).Code))
}
