package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/example/skillbook/internal/geo"
	"github.com/example/skillbook/internal/models"
)

// MaxAttachments is the booking service's cap on thumbnail file parts.
const MaxAttachments = 4

// SubmissionRequest is the assembled payload for POST /bookings: the draft
// fields, the chosen method's intent, and the booking coordinate when one
// was resolved.
type SubmissionRequest struct {
	Draft        models.BookingDraft
	BookedUserID string
	Coord        *geo.Coord
	IntentID     string
	Method       models.PaymentMethod
}

type Confirmation struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

// Submitter posts the multipart booking request.
type Submitter interface {
	Submit(ctx context.Context, req SubmissionRequest) (Confirmation, error)
}

// Client submits bookings to the booking service. The timeout is longer than
// the other clients' because attachments can make the body large.
type Client struct {
	Endpoint string
	Client   *http.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{Endpoint: endpoint, Client: &http.Client{Timeout: timeout}}
}

func (c *Client) Submit(ctx context.Context, req SubmissionRequest) (Confirmation, error) {
	body, contentType, err := encodeMultipart(req)
	if err != nil {
		return Confirmation{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/bookings", body)
	if err != nil {
		return Confirmation{}, err
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return Confirmation{}, fmt.Errorf("booking submit: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Confirmation{}, fmt.Errorf("booking submit: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var conf Confirmation
	if err := json.NewDecoder(resp.Body).Decode(&conf); err != nil {
		return Confirmation{}, fmt.Errorf("booking submit: decode: %w", err)
	}
	return conf, nil
}

func encodeMultipart(req SubmissionRequest) (*bytes.Buffer, string, error) {
	if len(req.Draft.Attachments) > MaxAttachments {
		return nil, "", fmt.Errorf("booking submit: %d attachments exceeds the limit of %d", len(req.Draft.Attachments), MaxAttachments)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"skills_id":         req.Draft.SkillID,
		"booked_user_id":    req.BookedUserID,
		"title":             req.Draft.Title,
		"description":       req.Draft.Description,
		"booking_location":  req.Draft.LocationText,
		"booking_date":      req.Draft.Date,
		"payment_intent_id": req.IntentID,
		"payment_method":    string(req.Method),
	}
	if req.Coord != nil && req.Coord.Valid() {
		fields["booking_lat"] = strconv.FormatFloat(req.Coord.Lat, 'f', 6, 64)
		fields["booking_lon"] = strconv.FormatFloat(req.Coord.Lon, 'f', 6, 64)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}

	for _, a := range req.Draft.Attachments {
		part, err := w.CreateFormFile("thumbnails", a.Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(a.Content); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
