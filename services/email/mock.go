package emailsvc

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

// MockService renders & records messages without sending them.
// Deliveries to an address set with FailFor return an error.
type MockService struct {
	mu       sync.Mutex
	messages []core.EmailMessage
	failFor  map[string]bool
}

var _ core.EmailService = (*MockService)(nil)

func NewMockService() *MockService {
	return &MockService{failFor: make(map[string]bool)}
}

func (svc *MockService) SendMessage(_ context.Context, msg *core.EmailMessage) error {
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering email")
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	for _, rcpt := range msg.Recipients() {
		if svc.failFor[rcpt] {
			return errors.Errorf("mailbox unavailable: %s", rcpt)
		}
	}
	if msg.HasRecipients() && (msg.HasContent() || msg.HasAttachments()) {
		svc.messages = append(svc.messages, *msg)
	}
	return nil
}

func (svc *MockService) FailFor(addresses ...string) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	for _, a := range addresses {
		svc.failFor[a] = true
	}
}

// SentMessages returns a copy of the recorded messages.
func (svc *MockService) SentMessages() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	msgs := make([]core.EmailMessage, len(svc.messages))
	copy(msgs, svc.messages)
	return msgs
}

// SentTo returns the recorded messages addressed to email.
func (svc *MockService) SentTo(email string) []core.EmailMessage {
	var msgs []core.EmailMessage
	for _, msg := range svc.SentMessages() {
		for _, rcpt := range msg.Recipients() {
			if rcpt == email {
				msgs = append(msgs, msg)
				break
			}
		}
	}
	return msgs
}

func (svc *MockService) Reset() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.messages = nil
}
