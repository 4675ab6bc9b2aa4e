// Package webhook decodes Dialogflow ES fulfillment requests and encodes
// fulfillment responses.
package webhook

import (
	"fmt"
	"strings"

	"cloud.google.com/go/dialogflow/apiv2/dialogflowpb"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jkindrix/quotebot/internal/domain"
	apperrors "github.com/jkindrix/quotebot/internal/errors"
)

// Request is the part of a fulfillment request the handlers use.
type Request struct {
	// Session is the full session path, e.g. "projects/p/agent/sessions/abc".
	Session string
	// SessionID is the last path segment of Session.
	SessionID string
	// Intent is the matched intent's display name.
	Intent string
	// Query is the user's raw utterance.
	Query  string
	Params Params
}

var unmarshalOptions = protojson.UnmarshalOptions{DiscardUnknown: true}

// Decode parses a fulfillment request body.
func Decode(body []byte) (*Request, error) {
	var wr dialogflowpb.WebhookRequest
	if err := unmarshalOptions.Unmarshal(body, &wr); err != nil {
		return nil, apperrors.InvalidPayload(err)
	}
	return FromProto(&wr), nil
}

// FromProto converts a decoded WebhookRequest.
func FromProto(wr *dialogflowpb.WebhookRequest) *Request {
	qr := wr.GetQueryResult()
	return &Request{
		Session:   wr.GetSession(),
		SessionID: SessionID(wr.GetSession()),
		Intent:    qr.GetIntent().GetDisplayName(),
		Query:     qr.GetQueryText(),
		Params:    Params(qr.GetParameters().AsMap()),
	}
}

// SessionID returns the final "/"-separated segment of a session path.
func SessionID(session string) string {
	if i := strings.LastIndex(session, "/"); i >= 0 {
		return session[i+1:]
	}
	return session
}

// Encode renders a reply as a WebhookResponse JSON document. The reply text
// is sent as fulfillmentText and as a text message; options are sent as a
// chips payload message when present.
func Encode(reply *domain.Reply) ([]byte, error) {
	resp, err := ToProto(reply)
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(resp)
}

// ToProto builds the WebhookResponse for a reply.
func ToProto(reply *domain.Reply) (*dialogflowpb.WebhookResponse, error) {
	resp := &dialogflowpb.WebhookResponse{
		FulfillmentText: reply.Text,
		FulfillmentMessages: []*dialogflowpb.Intent_Message{
			{
				Message: &dialogflowpb.Intent_Message_Text_{
					Text: &dialogflowpb.Intent_Message_Text{Text: []string{reply.Text}},
				},
			},
		},
	}

	if len(reply.Options) > 0 {
		payload, err := ChipsPayload(reply.Options)
		if err != nil {
			return nil, err
		}
		resp.FulfillmentMessages = append(resp.FulfillmentMessages, &dialogflowpb.Intent_Message{
			Message: &dialogflowpb.Intent_Message_Payload{Payload: payload},
		})
	}
	return resp, nil
}

// ChipsPayload builds the Dialogflow Messenger rich content payload for a
// list of quick-reply options.
func ChipsPayload(options []string) (*structpb.Struct, error) {
	opts := make([]interface{}, len(options))
	for i, o := range options {
		opts[i] = map[string]interface{}{"text": o}
	}

	payload, err := structpb.NewStruct(map[string]interface{}{
		"richContent": []interface{}{
			[]interface{}{
				map[string]interface{}{
					"type":    "chips",
					"options": opts,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build chips payload: %w", err)
	}
	return payload, nil
}
