package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Схема подписи вебхука Stripe v1:
//
//	Stripe-Signature: t={timestamp},v1={signature}
//
// где signature = HMAC-SHA256(secret, "{timestamp}.{payload}").

// DefaultTolerance — допустимый возраст подписи.
const DefaultTolerance = 5 * time.Minute

var (
	ErrNoSignature      = errors.New("stripe webhook: заголовок подписи отсутствует или пуст")
	ErrInvalidSignature = errors.New("stripe webhook: подпись не подошла ни под один настроенный секрет")
	ErrTooOld           = errors.New("stripe webhook: метка времени подписи слишком старая")
	ErrNoSecrets        = errors.New("stripe webhook: секреты не настроены")
)

// ConstructEvent проверяет подпись сырого тела вебхука против упорядоченного
// списка секретов (основной, резервный, третий на период ротации) и разбирает
// событие. Принимается первый подошедший секрет.
func ConstructEvent(payload []byte, sigHeader string, secrets []string) (*Event, error) {
	return constructEventAt(payload, sigHeader, secrets, time.Now(), DefaultTolerance)
}

func constructEventAt(payload []byte, sigHeader string, secrets []string, now time.Time, tolerance time.Duration) (*Event, error) {
	if len(secrets) == 0 {
		return nil, ErrNoSecrets
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return nil, err
	}

	if tolerance > 0 && now.Sub(time.Unix(timestamp, 0)) > tolerance {
		return nil, ErrTooOld
	}

	if !anySecretMatches(timestamp, payload, signatures, secrets) {
		return nil, ErrInvalidSignature
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("stripe webhook: не удалось разобрать событие: %w", err)
	}
	return &event, nil
}

// ComputeSignature вычисляет v1 подпись для данных "{timestamp}.{payload}".
func ComputeSignature(timestamp int64, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignPayload формирует значение заголовка Stripe-Signature (для тестов).
func SignPayload(payload []byte, secret string, timestamp int64) string {
	return fmt.Sprintf("t=%d,v1=%s", timestamp, ComputeSignature(timestamp, payload, secret))
}

// parseSignatureHeader разбирает "t=...,v1=...,v1=..." на метку времени и
// список подписей. Stripe может прислать несколько v1 при ротации секрета.
func parseSignatureHeader(header string) (int64, []string, error) {
	if strings.TrimSpace(header) == "" {
		return 0, nil, ErrNoSignature
	}

	var (
		timestamp  int64
		signatures []string
		hasT       bool
	)

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("stripe webhook: некорректная метка времени: %w", err)
			}
			timestamp = ts
			hasT = true
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if !hasT || len(signatures) == 0 {
		return 0, nil, ErrNoSignature
	}
	return timestamp, signatures, nil
}

func anySecretMatches(timestamp int64, payload []byte, signatures, secrets []string) bool {
	for _, secret := range secrets {
		expected := ComputeSignature(timestamp, payload, secret)
		for _, sig := range signatures {
			if hmac.Equal([]byte(expected), []byte(sig)) {
				return true
			}
		}
	}
	return false
}
