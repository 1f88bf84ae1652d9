// Package pacs submits generated studies to a DICOMweb archive over
// STOW-RS and checks archive reachability over QIDO-RS. The core hands
// it fully formed images; association-level concerns stay here.
package pacs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/suyashkumar/dicom"

	synth "github.com/pacslab/dicomsynth/internal/dicom"
)

// defaultTimeout bounds each HTTP request when the options give none.
const defaultTimeout = 30 * time.Second

// Status reports the outcome of one image submission. Code carries the
// HTTP status, 0 when the request never reached the archive.
type Status struct {
	Success bool
	Code    int
	Err     error
}

// StudyResult summarizes a study submission.
type StudyResult struct {
	Total  int
	Sent   int
	Failed []string // SOP instance UIDs the archive did not accept
}

// AllSent reports whether every image of the study was accepted.
func (r StudyResult) AllSent() bool {
	return r.Sent == r.Total
}

// Sender submits images to a remote archive.
type Sender interface {
	Submit(ctx context.Context, img *synth.Image) Status
	SubmitStudy(ctx context.Context, study *synth.Study) (StudyResult, error)
	VerifyReachable(ctx context.Context) error
}

// Options configures a Client.
type Options struct {
	BaseURL   string        // DICOMweb root, e.g. http://archive:8042/dicom-web
	CallingAE string        // our application entity title
	CalledAE  string        // the archive's application entity title
	Timeout   time.Duration // per-request timeout; 0 uses the default
}

// Client is the STOW-RS implementation of Sender.
type Client struct {
	baseURL   string
	callingAE string
	calledAE  string
	http      *http.Client
	log       zerolog.Logger
}

var _ Sender = (*Client)(nil)

// NewClient builds a client for the archive at opts.BaseURL.
func NewClient(opts Options, log zerolog.Logger) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("archive base URL must not be empty")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		callingAE: sanitizeAETitle(opts.CallingAE),
		calledAE:  sanitizeAETitle(opts.CalledAE),
		http:      &http.Client{Timeout: timeout},
		log:       log,
	}, nil
}

// Submit stores a single image via STOW-RS.
func (c *Client) Submit(ctx context.Context, img *synth.Image) Status {
	body, contentType, err := encodeParts(img)
	if err != nil {
		return Status{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/studies", body)
	if err != nil {
		return Status{Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/dicom+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Status{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	status := Status{Code: resp.StatusCode, Success: resp.StatusCode >= 200 && resp.StatusCode < 300}
	if status.Success {
		c.log.Debug().Str("sop_instance_uid", img.UID).Int("code", status.Code).Msg("image stored")
	} else {
		c.log.Error().Str("sop_instance_uid", img.UID).Int("code", status.Code).Msg("archive rejected image")
	}
	return status
}

// SubmitStudy stores every image of the study one request at a time and
// counts acceptances. Rejected images are recorded in the result, not
// returned as an error; the only errors are a canceled context or a
// request that never completed.
func (c *Client) SubmitStudy(ctx context.Context, study *synth.Study) (StudyResult, error) {
	result := StudyResult{Total: study.TotalImages()}

	for _, series := range study.Series {
		for _, img := range series.Images {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			status := c.Submit(ctx, img)
			if status.Err != nil {
				return result, fmt.Errorf("submit %s: %w", img.UID, status.Err)
			}
			if status.Success {
				result.Sent++
			} else {
				result.Failed = append(result.Failed, img.UID)
			}
		}
	}

	evt := c.log.Info()
	if !result.AllSent() {
		evt = c.log.Error()
	}
	evt.Str("study_uid", study.UID).
		Int("sent", result.Sent).
		Int("total", result.Total).
		Msg("study submission finished")
	return result, nil
}

// VerifyReachable checks the archive answers QIDO-RS study queries.
func (c *Client) VerifyReachable(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/studies?limit=1", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/dicom+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("archive unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.log.Info().
			Str("calling_ae", c.callingAE).
			Str("called_ae", c.calledAE).
			Str("url", c.baseURL).
			Msg("archive reachable")
		return nil
	}
	return fmt.Errorf("archive returned status %d", resp.StatusCode)
}

// encodeParts wraps the image's DICOM bytes in a one-part
// multipart/related body and returns the body with its content type.
func encodeParts(img *synth.Image) (*bytes.Buffer, string, error) {
	ds, err := synth.BuildDataset(img)
	if err != nil {
		return nil, "", fmt.Errorf("build dataset for %s: %w", img.UID, err)
	}

	var file bytes.Buffer
	if err := dicom.Write(&file, ds); err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", img.UID, err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"application/dicom"},
	})
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(file.Bytes()); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}

	contentType := fmt.Sprintf(`multipart/related; type="application/dicom"; boundary=%s`, mw.Boundary())
	return &body, contentType, nil
}

// sanitizeAETitle trims whitespace and truncates to the 16 characters
// an application entity title may carry.
func sanitizeAETitle(title string) string {
	title = strings.TrimSpace(title)
	if len(title) > 16 {
		title = title[:16]
	}
	return title
}
