package models

import "strings"

// Константы handshake-обмена между дверью и сервером.
// Значения зафиксированы протоколом и не подлежат изменению.
const (
	// HandshakeAckToken — токен, который сервер дописывает к клиентской
	// последовательности при создании журнала.
	HandshakeAckToken = `{"server": "ok"}`
	// HandshakeSeparator разделяет токены в последовательности.
	HandshakeSeparator = ","
)

// HandshakeLog — журнал рукопожатия между дверью и сервером для одной
// транзакции. Оба поля, Handshake и Events, только растут: merge обязан
// дописывать и никогда не затирать накопленное.
type HandshakeLog struct {
	Meta
	TransactionID string `json:"transaction_id"`
	Handshake     string `json:"handshake"`
	Events        string `json:"events"`
}

// AppendHandshakeToken наращивает последовательность токенов.
// Пустая последовательность начинается с самого токена, без разделителя.
func AppendHandshakeToken(sequence, token string) string {
	if sequence == "" {
		return token
	}
	return sequence + HandshakeSeparator + token
}

// HandshakeTokens разбирает последовательность на отдельные токены.
func HandshakeTokens(sequence string) []string {
	if sequence == "" {
		return nil
	}
	return strings.Split(sequence, HandshakeSeparator)
}
