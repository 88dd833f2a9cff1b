package gateway

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/craftlane/craftlane-orders-service/internal/apperrors"
	"github.com/craftlane/craftlane-orders-service/internal/config"
	"github.com/craftlane/craftlane-orders-service/internal/models"
)

// WeChatGateway implements Native (QR code) pay through the v2 merchant API.
// The wire format is XML with an MD5 parameter signature; amounts are in fen
// (minor units). Confirmation is asynchronous via the notify callback.
type WeChatGateway struct {
	cfg        config.WeChatConfig
	currency   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWeChatGateway creates the WeChat Pay adapter.
func NewWeChatGateway(cfg config.WeChatConfig, currency string, logger *zap.Logger) *WeChatGateway {
	return &WeChatGateway{
		cfg:        cfg,
		currency:   strings.ToUpper(currency),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (g *WeChatGateway) Name() string { return "wechat" }

func (g *WeChatGateway) Configured() bool { return g.cfg.Configured() }

// CreatePayment calls unifiedorder with trade_type NATIVE and returns the
// code_url QR payload. The order id rides in the attach field so notify
// callbacks carry it back.
func (g *WeChatGateway) CreatePayment(ctx context.Context, order *models.Order, returnURL, cancelURL string) (*models.PaymentHandle, error) {
	outTradeNo := "wx" + strings.ReplaceAll(uuid.NewString(), "-", "")

	params := map[string]string{
		"appid":            g.cfg.AppID,
		"mch_id":           g.cfg.MchID,
		"nonce_str":        nonce(),
		"body":             "Craftlane order " + order.ID,
		"attach":           order.ID,
		"out_trade_no":     outTradeNo,
		"total_fee":        strconv.FormatInt(order.TotalAmount.MinorUnits(), 10),
		"fee_type":         g.currency,
		"spbill_create_ip": "127.0.0.1",
		"notify_url":       g.cfg.NotifyURL,
		"trade_type":       "NATIVE",
	}
	params["sign"] = g.sign(params)

	result, err := g.post(ctx, "/pay/unifiedorder", params)
	if err != nil {
		return nil, err
	}

	if result["return_code"] != "SUCCESS" || result["result_code"] != "SUCCESS" {
		return nil, fmt.Errorf("wechat: unifiedorder rejected: %s %s",
			result["return_msg"], result["err_code_des"])
	}

	g.logger.Info("WeChat native order created",
		zap.String("order_id", order.ID),
		zap.String("out_trade_no", outTradeNo),
	)

	return &models.PaymentHandle{
		ProviderID: outTradeNo,
		QRCode:     result["code_url"],
	}, nil
}

// VerifyPayment calls orderquery; only trade_state SUCCESS is success.
func (g *WeChatGateway) VerifyPayment(ctx context.Context, providerID string) (*models.PaymentResult, error) {
	params := map[string]string{
		"appid":        g.cfg.AppID,
		"mch_id":       g.cfg.MchID,
		"out_trade_no": providerID,
		"nonce_str":    nonce(),
	}
	params["sign"] = g.sign(params)

	result, err := g.post(ctx, "/pay/orderquery", params)
	if err != nil {
		return nil, err
	}

	if result["return_code"] != "SUCCESS" {
		return nil, fmt.Errorf("wechat: orderquery rejected: %s", result["return_msg"])
	}

	totalFee, _ := strconv.ParseInt(result["total_fee"], 10, 64)
	payment := &models.PaymentResult{
		TransactionID: providerID,
		Amount:        models.NewMoneyFromMinorUnits(totalFee),
		Currency:      g.currency,
		Method:        g.Name(),
		Timestamp:     parseWeChatTime(result["time_end"]),
	}

	switch result["trade_state"] {
	case "SUCCESS":
		payment.Success = true
		payment.Status = models.PaymentStatusCompleted
	case "NOTPAY", "USERPAYING":
		payment.Status = models.PaymentStatusPending
	case "REFUND":
		payment.Status = models.PaymentStatusRefunded
	default:
		payment.Status = models.PaymentStatusFailed
	}

	return payment, nil
}

// HandleWebhook verifies the MD5 parameter signature of the notify payload
// before interpreting it. WeChat has no signature header; the sign field
// inside the XML covers every other field.
func (g *WeChatGateway) HandleWebhook(ctx context.Context, payload []byte, headers map[string]string) (*models.NormalizedEvent, error) {
	fields, err := parseXMLParams(payload)
	if err != nil {
		return nil, fmt.Errorf("wechat: malformed notify payload: %w", err)
	}

	provided := fields["sign"]
	if provided == "" {
		return nil, apperrors.AuthenticationFailed(g.Name(), "missing sign field")
	}

	unsigned := make(map[string]string, len(fields))
	for k, v := range fields {
		if k != "sign" {
			unsigned[k] = v
		}
	}
	if subtle.ConstantTimeCompare([]byte(g.sign(unsigned)), []byte(provided)) != 1 {
		return nil, apperrors.AuthenticationFailed(g.Name(), "signature mismatch")
	}

	totalFee, _ := strconv.ParseInt(fields["total_fee"], 10, 64)
	normalized := &models.NormalizedEvent{
		Type:          models.EventIgnored,
		OrderID:       fields["attach"],
		TransactionID: fields["out_trade_no"],
		Amount:        models.NewMoneyFromMinorUnits(totalFee),
		Currency:      g.currency,
		Method:        g.Name(),
		Timestamp:     parseWeChatTime(fields["time_end"]),
	}

	switch {
	case fields["return_code"] == "SUCCESS" && fields["result_code"] == "SUCCESS":
		normalized.Type = models.EventPaymentCompleted
	case fields["return_code"] == "SUCCESS":
		normalized.Type = models.EventPaymentFailed
	}

	return normalized, nil
}

// RefundPayment refunds through the merchant refund API. Partial refunds set
// refund_fee below total_fee.
func (g *WeChatGateway) RefundPayment(ctx context.Context, providerID string, amount *models.Money) (*models.RefundResult, error) {
	current, err := g.VerifyPayment(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if current.Status != models.PaymentStatusCompleted && current.Status != models.PaymentStatusRefunded {
		return nil, fmt.Errorf("wechat: trade %s not paid: %w", providerID, apperrors.ErrPaymentNotCompleted)
	}

	refundFee := current.Amount.MinorUnits()
	if amount != nil {
		refundFee = amount.MinorUnits()
	}

	outRefundNo := "rf" + strings.ReplaceAll(uuid.NewString(), "-", "")
	params := map[string]string{
		"appid":         g.cfg.AppID,
		"mch_id":        g.cfg.MchID,
		"nonce_str":     nonce(),
		"out_trade_no":  providerID,
		"out_refund_no": outRefundNo,
		"total_fee":     strconv.FormatInt(current.Amount.MinorUnits(), 10),
		"refund_fee":    strconv.FormatInt(refundFee, 10),
	}
	params["sign"] = g.sign(params)

	result, err := g.post(ctx, "/secapi/pay/refund", params)
	if err != nil {
		return nil, err
	}

	if result["return_code"] != "SUCCESS" || result["result_code"] != "SUCCESS" {
		return nil, fmt.Errorf("wechat: refund rejected: %s %s",
			result["return_msg"], result["err_code_des"])
	}

	g.logger.Info("WeChat refund created",
		zap.String("out_trade_no", providerID),
		zap.String("out_refund_no", outRefundNo),
	)

	return &models.RefundResult{
		RefundID:      result["refund_id"],
		TransactionID: providerID,
		Amount:        models.NewMoneyFromMinorUnits(refundFee),
		Status:        "processing",
		Timestamp:     time.Now(),
	}, nil
}

// sign computes the v2 MD5 signature: sorted non-empty k=v pairs joined with
// &, the API key appended, uppercase hex digest.
func (g *WeChatGateway) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
		sb.WriteByte('&')
	}
	sb.WriteString("key=")
	sb.WriteString(g.cfg.APIKey)

	sum := md5.Sum([]byte(sb.String()))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func (g *WeChatGateway) post(ctx context.Context, path string, params map[string]string) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.cfg.BaseURL+path, bytes.NewReader(encodeXMLParams(params)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.ProviderUnavailable(g.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.ProviderUnavailable(g.Name(), fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.ProviderUnavailable(g.Name(), err)
	}

	return parseXMLParams(body)
}

// encodeXMLParams renders the flat <xml><k>v</k>...</xml> document the v2 API
// expects, keys sorted for determinism.
func encodeXMLParams(params map[string]string) []byte {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString("<xml>")
	for _, k := range keys {
		buf.WriteByte('<')
		buf.WriteString(k)
		buf.WriteByte('>')
		xml.EscapeText(&buf, []byte(params[k]))
		buf.WriteString("</")
		buf.WriteString(k)
		buf.WriteByte('>')
	}
	buf.WriteString("</xml>")
	return buf.Bytes()
}

// parseXMLParams flattens a one-level <xml> document into a map.
func parseXMLParams(data []byte) (map[string]string, error) {
	fields := make(map[string]string)
	decoder := xml.NewDecoder(bytes.NewReader(data))

	var current string
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "xml" {
				current = t.Name.Local
			}
		case xml.CharData:
			if current != "" {
				fields[current] += string(t)
			}
		case xml.EndElement:
			current = ""
		}
	}

	return fields, nil
}

func parseWeChatTime(s string) time.Time {
	t, err := time.Parse("20060102150405", s)
	if err != nil {
		return time.Now()
	}
	return t
}

func nonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
