package whatsapp

// Payload is the webhook notification envelope posted by the platform
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one business-account entry in a notification
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is one field change within an entry
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue carries the messages and delivery statuses of a change
type ChangeValue struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts,omitempty"`
	Messages         []Message `json:"messages,omitempty"`
	Statuses         []Status  `json:"statuses,omitempty"`
}

// Metadata identifies the receiving business phone number
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is the sender's profile information
type Contact struct {
	Profile Profile `json:"profile"`
	WaID    string  `json:"wa_id"`
}

// Profile holds the sender's display name
type Profile struct {
	Name string `json:"name"`
}

// Message is one inbound message event
type Message struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *Text  `json:"text,omitempty"`
}

// Text is the body of a text message
type Text struct {
	Body string `json:"body"`
}

// Status is a delivery status update for a previously sent message.
// Parsed so status notifications are recognized and skipped, not
// mistaken for malformed payloads.
type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// Inbound is the transport-independent view of one message event: who
// sent it, what they said, and the delivery id used for dedup. Text is
// empty for non-text message types; DeliveryID is empty when the
// platform omitted the message id.
type Inbound struct {
	ChatID     string
	Text       string
	DeliveryID string
}

// ExtractInbound flattens a webhook payload into message events. Status
// updates and non-message changes are skipped.
func ExtractInbound(p *Payload) []Inbound {
	var inbound []Inbound
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			for _, msg := range change.Value.Messages {
				in := Inbound{
					ChatID:     msg.From,
					DeliveryID: msg.ID,
				}
				if msg.Type == "text" && msg.Text != nil {
					in.Text = msg.Text.Body
				}
				inbound = append(inbound, in)
			}
		}
	}
	return inbound
}

// sendRequest is the outbound message request body
type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	Body string `json:"body"`
}
