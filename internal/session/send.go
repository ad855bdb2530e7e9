package session

import (
	"encoding/base64"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"tether/internal/client"
	"tether/internal/logging"
	"tether/internal/state"
	"tether/internal/types"
)

// Image is an attachment sent as a file part.
type Image struct {
	Filename string
	Mime     string
	Data     []byte
}

func (img Image) mimeType() string {
	if m := strings.TrimSpace(img.Mime); m != "" {
		return m
	}
	if m := mime.TypeByExtension(strings.ToLower(filepath.Ext(img.Filename))); m != "" {
		return m
	}
	return http.DetectContentType(img.Data)
}

// BuildParts turns user input into chat parts: one text part when text is
// not blank, then one file part per image.
func BuildParts(text string, images []Image) []types.Part {
	parts := make([]types.Part, 0, len(images)+1)
	if strings.TrimSpace(text) != "" {
		parts = append(parts, types.Part{Type: types.PartTypeText, Text: text})
	}
	for _, img := range images {
		if len(img.Data) == 0 {
			continue
		}
		mimeType := img.mimeType()
		parts = append(parts, types.Part{
			Type:     types.PartTypeFile,
			Mime:     mimeType,
			Filename: img.Filename,
			URL:      "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data),
		})
	}
	return parts
}

// SendMessage starts a chat turn and returns its request id without waiting
// for the reply; the stream delivers the assistant's response. Failures after
// return arrive on Errors and as the state's last error.
func (c *Controller) SendMessage(sessionID, text, providerID, modelID string, images []Image) (string, error) {
	api, _ := c.handle()
	if api == nil || !c.states.Snapshot().Connected() {
		return "", ErrNotConnected
	}
	providerID = strings.TrimSpace(providerID)
	modelID = strings.TrimSpace(modelID)
	if providerID == "" || modelID == "" {
		return "", ErrNoModel
	}
	parts := BuildParts(text, images)
	if len(parts) == 0 {
		return "", ErrEmptyMessage
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", errors.New("session id is required")
	}

	requestID := uuid.NewString()
	req := client.ChatRequest{ProviderID: providerID, ModelID: modelID, Parts: parts}
	c.sends.Add(1)
	go func() {
		defer c.sends.Done()
		start := time.Now()
		err := api.SendMessage(c.ctx, sessionID, req)
		if err == nil {
			c.logger.Info("send complete",
				logging.F("request_id", requestID),
				logging.F("session_id", sessionID),
				logging.F("dur", time.Since(start)),
			)
			return
		}
		if c.ctx.Err() != nil {
			c.logger.Debug("send cancelled", logging.F("request_id", requestID))
			return
		}
		c.reportSendError(SendError{RequestID: requestID, SessionID: sessionID, Err: err})
	}()
	c.logger.Debug("send started",
		logging.F("request_id", requestID),
		logging.F("session_id", sessionID),
		logging.F("parts", len(parts)),
	)
	return requestID, nil
}

func (c *Controller) reportSendError(sendErr SendError) {
	c.logger.Warn("send failed",
		logging.F("request_id", sendErr.RequestID),
		logging.F("session_id", sendErr.SessionID),
		logging.Err(sendErr.Err),
	)
	c.apply(c.ctx, state.ReportError{SessionID: sendErr.SessionID, Message: "send failed: " + sendErr.Err.Error()})
	select {
	case c.errs <- sendErr:
	default:
		c.logger.Warn("send error dropped: no reader", logging.F("request_id", sendErr.RequestID))
	}
}
