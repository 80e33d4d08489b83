package handler

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"net/http"

	"github.com/barflyapp/barfly-data/internal/api/respond"
	"github.com/barflyapp/barfly-data/internal/apperr"
	"github.com/barflyapp/barfly-data/internal/session"
)

// --------------------------------------------------------------------------
// Twilio SMS webhook
// --------------------------------------------------------------------------

// twimlResponse is the reply document Twilio turns into an outbound SMS.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// SMSWebhook receives inbound SMS from Twilio, executes the text command,
// and replies inline as TwiML.
// @Summary Twilio inbound SMS webhook
// @Description Executes the texted command (start, stop, check, drink) and replies as TwiML.
// @Tags webhooks
// @Accept x-www-form-urlencoded
// @Produce xml
// @Success 200 {string} string "TwiML response"
// @Router /webhooks/sms [post]
func (h *Handler) SMSWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid form body")
		return
	}
	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")

	// Unknown numbers get an empty TwiML document, not an error: Twilio
	// retries non-2xx responses.
	reply := ""
	user, err := h.deps.Users.GetByPhone(r.Context(), from)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		h.deps.Logger.Info("sms webhook: unknown number", "from", from)
	case err != nil:
		h.deps.Logger.Warn("sms webhook: lookup failed", "from", from, "error", err)
	default:
		reply = h.deps.Commands.Execute(r.Context(), user, body, session.SourceSMS)
	}

	writeTwiML(w, reply)
}

func writeTwiML(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	xml.NewEncoder(w).Encode(twimlResponse{Message: message})
}

// --------------------------------------------------------------------------
// Facebook Messenger webhook
// --------------------------------------------------------------------------

// messengerEvent is the subset of the Messenger webhook payload the service
// reads.
type messengerEvent struct {
	Entry []struct {
		Messaging []struct {
			Sender struct {
				ID string `json:"id"`
			} `json:"sender"`
			Message struct {
				Text string `json:"text"`
			} `json:"message"`
		} `json:"messaging"`
	} `json:"entry"`
}

// MessengerVerify answers the Messenger platform's subscription handshake.
// @Summary Messenger webhook verification
// @Description Echoes hub.challenge when hub.verify_token matches the configured token.
// @Tags webhooks
// @Produce plain
// @Success 200 {string} string "hub.challenge"
// @Failure 403 {object} respond.ErrorResponse
// @Router /webhooks/messenger [get]
func (h *Handler) MessengerVerify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token == "" || token != h.deps.Config.MessengerVerifyToken {
		respond.WriteError(w, http.StatusForbidden, "FORBIDDEN", "verification failed")
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// MessengerWebhook receives inbound Messenger messages, executes the text
// command, and sends the reply back through the Send API.
// @Summary Messenger inbound message webhook
// @Description Executes the messaged command (start, stop, check, drink) and replies via the Send API.
// @Tags webhooks
// @Accept json
// @Produce plain
// @Success 200 {string} string "EVENT_RECEIVED"
// @Router /webhooks/messenger [post]
func (h *Handler) MessengerWebhook(w http.ResponseWriter, r *http.Request) {
	var event messengerEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}

	for _, entry := range event.Entry {
		for _, msg := range entry.Messaging {
			if msg.Sender.ID == "" || msg.Message.Text == "" {
				continue
			}
			h.handleMessengerMessage(r, msg.Sender.ID, msg.Message.Text)
		}
	}

	// The platform only needs a 200; replies go out over the Send API.
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("EVENT_RECEIVED"))
}

func (h *Handler) handleMessengerMessage(r *http.Request, senderID, text string) {
	user, err := h.deps.Users.GetByMessenger(r.Context(), senderID)
	if errors.Is(err, apperr.ErrNotFound) {
		h.deps.Logger.Info("messenger webhook: unknown sender", "sender_id", senderID)
		return
	}
	if err != nil {
		h.deps.Logger.Warn("messenger webhook: lookup failed", "sender_id", senderID, "error", err)
		return
	}

	reply := h.deps.Commands.Execute(r.Context(), user, text, session.SourceMessenger)
	if reply == "" || h.deps.Messenger == nil {
		return
	}
	if _, err := h.deps.Messenger.Send(r.Context(), senderID, reply); err != nil {
		h.deps.Logger.Warn("messenger webhook: reply failed", "sender_id", senderID, "error", err)
	}
}
