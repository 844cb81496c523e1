// Package ws streams configuration snapshots to browser editors over
// WebSocket and accepts rule edits on the same connection.
package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/net/websocket"

	apperrors "github.com/louisbranch/ruleforge/internal/platform/errors"
	"github.com/louisbranch/ruleforge/internal/platform/errors/i18n"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/configuration"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/notify"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/rule"
	"github.com/louisbranch/ruleforge/internal/services/rules/engine"
)

// Frame types.
const (
	FrameSnapshot     = "configuration.snapshot"
	FrameDisposed     = "configuration.disposed"
	FrameError        = "configuration.error"
	FrameEnable       = "rule.enable"
	FrameDisable      = "rule.disable"
	FrameSetParameter = "rule.set_parameter"
)

const maxDecodeErrorsPerConn = 8

// Frame is the envelope of every message in both directions.
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type editPayload struct {
	RuleID string     `json:"rule_id"`
	Key    string     `json:"key,omitempty"`
	Value  rule.Value `json:"value"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewHandler returns the /up and /ws/configurations/{gameId} routes.
func NewHandler(eng *engine.Engine) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/ws/configurations/{gameId}", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		gameID := strings.TrimSpace(r.PathValue("gameId"))
		if _, ok := eng.GetConfiguration(gameID); !ok {
			http.Error(w, "configuration not found", http.StatusNotFound)
			return
		}
		locale := i18n.MatchLocale(r.Header.Get("Accept-Language"))
		websocket.Handler(func(conn *websocket.Conn) {
			handleConn(conn, eng, gameID, locale)
		}).ServeHTTP(w, r)
	})
	return mux
}

type peer struct {
	mu      sync.Mutex
	encoder *json.Encoder
	locale  string
}

func (p *peer) write(frameType, requestID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", frameType, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(Frame{Type: frameType, RequestID: requestID, Payload: data})
}

func (p *peer) writeError(requestID string, err error) error {
	code := apperrors.CodeOf(err)
	var domainErr *apperrors.Error
	var metadata map[string]string
	if errors.As(err, &domainErr) {
		metadata = domainErr.Metadata
	}
	return p.write(FrameError, requestID, errorPayload{
		Code:    string(code),
		Message: i18n.GetCatalog(p.locale).Format(string(code), metadata),
	})
}

func handleConn(conn *websocket.Conn, eng *engine.Engine, gameID, locale string) {
	defer func() {
		_ = conn.Close()
	}()
	p := &peer{encoder: json.NewEncoder(conn), locale: locale}

	updates := notify.NewLatest[configuration.Snapshot]()
	sub, err := eng.OnConfigurationChange(gameID, updates.Offer)
	if err != nil {
		_ = p.writeError("", err)
		return
	}
	defer sub.Unsubscribe()

	if snap, ok := eng.GetConfiguration(gameID); ok {
		if err := p.write(FrameSnapshot, "", snap); err != nil {
			return
		}
	}

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		readFrames(conn, p, eng, gameID)
	}()

	for {
		select {
		case snap := <-updates.C():
			if err := p.write(FrameSnapshot, "", snap); err != nil {
				return
			}
		case <-sub.Done():
			select {
			case snap := <-updates.C():
				if err := p.write(FrameSnapshot, "", snap); err != nil {
					return
				}
			default:
			}
			_ = p.write(FrameDisposed, "", map[string]string{"game_id": gameID})
			return
		case <-readerDone:
			return
		}
	}
}

// readFrames applies edit frames until the peer disconnects. Successful
// edits are answered through the snapshot stream.
func readFrames(conn *websocket.Conn, p *peer, eng *engine.Engine, gameID string) {
	decoder := json.NewDecoder(conn)
	decodeErrors := 0
	for {
		var frame Frame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			decodeErrors++
			writeErr := p.writeError("", apperrors.Wrap(apperrors.CodeFrameInvalid, "invalid frame payload", err))
			if writeErr != nil || decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if err := applyFrame(eng, gameID, frame); err != nil {
			_ = p.writeError(frame.RequestID, err)
		}
	}
}

func applyFrame(eng *engine.Engine, gameID string, frame Frame) error {
	switch frame.Type {
	case FrameEnable, FrameDisable, FrameSetParameter:
	default:
		return apperrors.New(apperrors.CodeFrameInvalid, fmt.Sprintf("unsupported frame type %q", frame.Type))
	}

	var payload editPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		return apperrors.Wrap(apperrors.CodeFrameInvalid, "invalid edit payload", err)
	}
	if strings.TrimSpace(payload.RuleID) == "" {
		return apperrors.WithMetadata(apperrors.CodeArgumentMissing, "rule_id is required", map[string]string{"Field": "rule_id"})
	}

	var err error
	switch frame.Type {
	case FrameEnable:
		_, err = eng.EnableRule(gameID, payload.RuleID)
	case FrameDisable:
		_, err = eng.DisableRule(gameID, payload.RuleID)
	case FrameSetParameter:
		_, err = eng.SetRuleParameter(gameID, payload.RuleID, payload.Key, payload.Value)
	}
	return err
}
