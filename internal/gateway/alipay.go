package gateway

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/craftlane/craftlane-orders-service/internal/apperrors"
	"github.com/craftlane/craftlane-orders-service/internal/config"
	"github.com/craftlane/craftlane-orders-service/internal/models"
)

// AlipayGateway implements QR payment through the open API precreate flow.
// Requests are signed with the merchant RSA key; inbound notifications are
// verified against the Alipay public key (RSA2, SHA256withRSA). Amounts are
// major-unit decimal strings.
type AlipayGateway struct {
	cfg        config.AlipayConfig
	currency   string
	httpClient *http.Client
	logger     *zap.Logger

	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

// NewAlipayGateway creates the Alipay adapter. Key parse failures leave the
// adapter registered but unconfigured.
func NewAlipayGateway(cfg config.AlipayConfig, currency string, logger *zap.Logger) *AlipayGateway {
	g := &AlipayGateway{
		cfg:        cfg,
		currency:   strings.ToUpper(currency),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}

	if cfg.Configured() {
		var err error
		if g.privateKey, err = parseRSAPrivateKey(cfg.PrivateKey); err != nil {
			logger.Warn("Alipay private key unusable", zap.Error(err))
		}
		if g.publicKey, err = parseRSAPublicKey(cfg.AlipayPublicKey); err != nil {
			logger.Warn("Alipay public key unusable", zap.Error(err))
		}
	}

	return g
}

func (g *AlipayGateway) Name() string { return "alipay" }

func (g *AlipayGateway) Configured() bool {
	return g.cfg.Configured() && g.privateKey != nil && g.publicKey != nil
}

// CreatePayment calls alipay.trade.precreate and returns the QR payload. The
// order id rides in passback_params so notifications carry it back.
func (g *AlipayGateway) CreatePayment(ctx context.Context, order *models.Order, returnURL, cancelURL string) (*models.PaymentHandle, error) {
	outTradeNo := "ali" + strings.ReplaceAll(uuid.NewString(), "-", "")

	bizContent, err := json.Marshal(map[string]string{
		"out_trade_no":    outTradeNo,
		"total_amount":    order.TotalAmount.String(),
		"subject":         "Craftlane order " + order.ID,
		"passback_params": url.QueryEscape(order.ID),
	})
	if err != nil {
		return nil, err
	}

	resp, err := g.call(ctx, "alipay.trade.precreate", string(bizContent))
	if err != nil {
		return nil, err
	}

	g.logger.Info("Alipay trade precreated",
		zap.String("order_id", order.ID),
		zap.String("out_trade_no", outTradeNo),
	)

	return &models.PaymentHandle{
		ProviderID: outTradeNo,
		QRCode:     resp["qr_code"],
	}, nil
}

// VerifyPayment calls alipay.trade.query; TRADE_SUCCESS and TRADE_FINISHED are
// the paid states.
func (g *AlipayGateway) VerifyPayment(ctx context.Context, providerID string) (*models.PaymentResult, error) {
	bizContent, err := json.Marshal(map[string]string{"out_trade_no": providerID})
	if err != nil {
		return nil, err
	}

	resp, err := g.call(ctx, "alipay.trade.query", string(bizContent))
	if err != nil {
		return nil, err
	}

	result := &models.PaymentResult{
		TransactionID: providerID,
		Amount:        models.NewMoney(resp["total_amount"]),
		Currency:      g.currency,
		Method:        g.Name(),
		Timestamp:     parseAlipayTime(resp["send_pay_date"]),
	}

	switch resp["trade_status"] {
	case "TRADE_SUCCESS", "TRADE_FINISHED":
		result.Success = true
		result.Status = models.PaymentStatusCompleted
	case "WAIT_BUYER_PAY":
		result.Status = models.PaymentStatusPending
	default:
		result.Status = models.PaymentStatusFailed
	}

	return result, nil
}

// HandleWebhook verifies the RSA2 signature over the notification parameters
// before interpreting them. The payload is the form-encoded notify body.
func (g *AlipayGateway) HandleWebhook(ctx context.Context, payload []byte, headers map[string]string) (*models.NormalizedEvent, error) {
	values, err := url.ParseQuery(string(payload))
	if err != nil {
		return nil, fmt.Errorf("alipay: malformed notify payload: %w", err)
	}

	if err := g.verifyNotification(values); err != nil {
		return nil, err
	}

	orderID, _ := url.QueryUnescape(values.Get("passback_params"))
	normalized := &models.NormalizedEvent{
		Type:          models.EventIgnored,
		OrderID:       orderID,
		TransactionID: values.Get("out_trade_no"),
		Amount:        models.NewMoney(values.Get("total_amount")),
		Currency:      g.currency,
		Method:        g.Name(),
		Timestamp:     parseAlipayTime(values.Get("gmt_payment")),
	}

	switch values.Get("trade_status") {
	case "TRADE_SUCCESS", "TRADE_FINISHED":
		normalized.Type = models.EventPaymentCompleted
	case "TRADE_CLOSED":
		normalized.Type = models.EventPaymentFailed
	}

	return normalized, nil
}

// RefundPayment calls alipay.trade.refund. A nil amount refunds the full
// trade amount as reported by trade.query.
func (g *AlipayGateway) RefundPayment(ctx context.Context, providerID string, amount *models.Money) (*models.RefundResult, error) {
	refundAmount := amount
	if refundAmount == nil {
		current, err := g.VerifyPayment(ctx, providerID)
		if err != nil {
			return nil, err
		}
		if !current.Success && current.Status != models.PaymentStatusRefunded {
			return nil, fmt.Errorf("alipay: trade %s not paid: %w", providerID, apperrors.ErrPaymentNotCompleted)
		}
		refundAmount = &current.Amount
	}

	outRequestNo := "rf" + strings.ReplaceAll(uuid.NewString(), "-", "")
	bizContent, err := json.Marshal(map[string]string{
		"out_trade_no":   providerID,
		"refund_amount":  refundAmount.String(),
		"out_request_no": outRequestNo,
	})
	if err != nil {
		return nil, err
	}

	resp, err := g.call(ctx, "alipay.trade.refund", string(bizContent))
	if err != nil {
		return nil, err
	}

	g.logger.Info("Alipay refund created",
		zap.String("out_trade_no", providerID),
		zap.String("out_request_no", outRequestNo),
	)

	return &models.RefundResult{
		RefundID:      outRequestNo,
		TransactionID: providerID,
		Amount:        models.NewMoney(resp["refund_fee"]),
		Status:        "completed",
		Timestamp:     time.Now(),
	}, nil
}

func (g *AlipayGateway) verifyNotification(values url.Values) error {
	signature := values.Get("sign")
	if signature == "" {
		return apperrors.AuthenticationFailed(g.Name(), "missing sign parameter")
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return apperrors.AuthenticationFailed(g.Name(), "sign is not base64")
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "sign" || k == "sign_type" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+values.Get(k))
	}

	digest := sha256.Sum256([]byte(strings.Join(pairs, "&")))
	if err := rsa.VerifyPKCS1v15(g.publicKey, crypto.SHA256, digest[:], sig); err != nil {
		return apperrors.AuthenticationFailed(g.Name(), "signature mismatch")
	}

	return nil
}

// call signs and posts one open API request, unwrapping the
// <method>_response envelope and its result code.
func (g *AlipayGateway) call(ctx context.Context, method, bizContent string) (map[string]string, error) {
	params := url.Values{}
	params.Set("app_id", g.cfg.AppID)
	params.Set("method", method)
	params.Set("charset", "utf-8")
	params.Set("sign_type", "RSA2")
	params.Set("timestamp", time.Now().Format("2006-01-02 15:04:05"))
	params.Set("version", "1.0")
	params.Set("biz_content", bizContent)
	if g.cfg.NotifyURL != "" {
		params.Set("notify_url", g.cfg.NotifyURL)
	}

	signature, err := g.signRequest(params)
	if err != nil {
		return nil, err
	}
	params.Set("sign", signature)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.ProviderUnavailable(g.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.ProviderUnavailable(g.Name(), fmt.Errorf("status %d", resp.StatusCode))
	}

	var envelope map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, err
	}

	responseKey := strings.ReplaceAll(method, ".", "_") + "_response"
	raw, ok := envelope[responseKey]
	if !ok {
		return nil, fmt.Errorf("alipay: response missing %s", responseKey)
	}

	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	if fields["code"] != "10000" {
		return nil, fmt.Errorf("alipay: %s rejected: %s %s", method, fields["code"], fields["sub_msg"])
	}

	return fields, nil
}

func (g *AlipayGateway) signRequest(params url.Values) (string, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "sign" || params.Get(k) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params.Get(k))
	}

	digest := sha256.Sum256([]byte(strings.Join(pairs, "&")))
	sig, err := rsa.SignPKCS1v15(rand.Reader, g.privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(sig), nil
}

// parseRSAPrivateKey accepts PEM or raw base64 DER, PKCS1 or PKCS8.
func parseRSAPrivateKey(key string) (*rsa.PrivateKey, error) {
	der, err := keyDER(key)
	if err != nil {
		return nil, err
	}

	if k, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return k, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA private key")
	}
	return rsaKey, nil
}

// parseRSAPublicKey accepts PEM or raw base64 PKIX DER.
func parseRSAPublicKey(key string) (*rsa.PublicKey, error) {
	der, err := keyDER(key)
	if err != nil {
		return nil, err
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key")
	}
	return rsaKey, nil
}

func keyDER(key string) ([]byte, error) {
	if block, _ := pem.Decode([]byte(key)); block != nil {
		return block.Bytes, nil
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(key))
}

func parseAlipayTime(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.Local)
	if err != nil {
		return time.Now()
	}
	return t
}
