package login

import (
	"context"

	"github.com/udisondev/uologin/internal/crypto"
	"github.com/udisondev/uologin/internal/model"
)

// DetectionRepository хранит историю детекта версий клиентов.
// Используется для dependency injection в тестах.
type DetectionRepository interface {
	// RecordDetection сохраняет результат одного handshake.
	RecordDetection(ctx context.Context, d model.Detection) error

	// LastVersion возвращает последнюю успешно определённую версию для IP.
	// ok == false если истории нет.
	LastVersion(ctx context.Context, ip string) (v crypto.Version, ok bool, err error)
}

// NopDetectionRepository is used when the history store is disabled.
type NopDetectionRepository struct{}

func (NopDetectionRepository) RecordDetection(context.Context, model.Detection) error {
	return nil
}

func (NopDetectionRepository) LastVersion(context.Context, string) (crypto.Version, bool, error) {
	return crypto.Version{}, false, nil
}
