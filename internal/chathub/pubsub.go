package chathub

import (
	"encoding/json"
	"log"

	"friendfinder/backend/internal/models"
	"friendfinder/backend/internal/storage"
)

// StartPubSubListener запускає goroutine, яка слухає Redis Pub/Sub канал
// подій сесій. Активна лише коли сховище — повноцінний storage.Service;
// in-memory реалізація не має Pub/Sub і слухач не стартує.
func (m *ManagerService) StartPubSubListener() {
	svc, ok := m.Storage.(*storage.Service)
	if !ok {
		return
	}

	go func() {
		pubsub := svc.SubscribeToSessionEvents()
		defer pubsub.Close()

		ch := pubsub.Channel()
		for msg := range ch {
			var ev models.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("Error unmarshalling Redis event: %v", err)
				continue
			}

			select {
			case m.pubSubCh <- ev:
			case <-m.stopCh:
				return
			}
		}
	}()
}
