package gateway

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/craftlane/craftlane-orders-service/internal/apperrors"
	"github.com/craftlane/craftlane-orders-service/internal/models"
)

// Fee rates per method. Unknown methods fall back to defaultFeeRate; callers
// must not rely on the fallback for correctness-critical totals.
var feeRates = map[string]decimal.Decimal{
	"stripe": decimal.NewFromFloat(0.029),
	"paypal": decimal.NewFromFloat(0.034),
	"wechat": decimal.NewFromFloat(0.006),
	"alipay": decimal.NewFromFloat(0.006),
}

var defaultFeeRate = decimal.NewFromFloat(0.03)

// MethodInfo describes one registered payment method for capability queries.
type MethodInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	Enabled     bool   `json:"enabled"`
	FeeRate     string `json:"fees"`
	Description string `json:"description"`
}

var methodDescriptions = map[string][2]string{
	"stripe": {"Credit Card", "Card checkout via hosted session"},
	"paypal": {"PayPal", "Redirect approval flow"},
	"wechat": {"WeChat Pay", "QR code, asynchronous confirmation"},
	"alipay": {"Alipay", "QR code, asynchronous confirmation"},
}

// Registry routes payment operations to the adapter registered for a method.
// The mapping is fixed at construction; adapters missing credentials stay
// registered and report themselves unavailable.
type Registry struct {
	gateways map[string]Gateway
	logger   *zap.Logger
}

// NewRegistry builds the method-to-adapter map once at process start.
func NewRegistry(logger *zap.Logger, gateways ...Gateway) *Registry {
	r := &Registry{
		gateways: make(map[string]Gateway, len(gateways)),
		logger:   logger,
	}

	for _, g := range gateways {
		r.gateways[g.Name()] = g
		logger.Info("Payment gateway registered",
			zap.String("method", g.Name()),
			zap.Bool("configured", g.Configured()),
		)
	}

	return r
}

func (r *Registry) gateway(method string) (Gateway, error) {
	g, ok := r.gateways[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedMethod, method)
	}
	if !g.Configured() {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrGatewayNotConfigured, method)
	}
	return g, nil
}

// CreatePayment delegates payment creation to the adapter for method.
func (r *Registry) CreatePayment(ctx context.Context, method string, order *models.Order, returnURL, cancelURL string) (*models.PaymentHandle, error) {
	g, err := r.gateway(method)
	if err != nil {
		return nil, err
	}
	return g.CreatePayment(ctx, order, returnURL, cancelURL)
}

// VerifyPayment delegates a synchronous provider poll.
func (r *Registry) VerifyPayment(ctx context.Context, method, providerID string) (*models.PaymentResult, error) {
	g, err := r.gateway(method)
	if err != nil {
		return nil, err
	}
	return g.VerifyPayment(ctx, providerID)
}

// HandleWebhook delegates webhook authentication and normalization.
func (r *Registry) HandleWebhook(ctx context.Context, method string, payload []byte, headers map[string]string) (*models.NormalizedEvent, error) {
	g, err := r.gateway(method)
	if err != nil {
		return nil, err
	}
	return g.HandleWebhook(ctx, payload, headers)
}

// RefundPayment delegates a refund. amount == nil means full refund.
func (r *Registry) RefundPayment(ctx context.Context, method, providerID string, amount *models.Money) (*models.RefundResult, error) {
	g, err := r.gateway(method)
	if err != nil {
		return nil, err
	}
	return g.RefundPayment(ctx, providerID, amount)
}

// SupportedMethods returns every registered identifier, configured or not.
func (r *Registry) SupportedMethods() []string {
	methods := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		methods = append(methods, name)
	}
	sort.Strings(methods)
	return methods
}

// MethodInfos returns capability details for every registered method.
func (r *Registry) MethodInfos() []MethodInfo {
	infos := make([]MethodInfo, 0, len(r.gateways))
	for _, name := range r.SupportedMethods() {
		g := r.gateways[name]
		rate, ok := feeRates[name]
		if !ok {
			rate = defaultFeeRate
		}
		desc := methodDescriptions[name]
		infos = append(infos, MethodInfo{
			ID:          name,
			DisplayName: desc[0],
			Enabled:     g.Configured(),
			FeeRate:     rate.String(),
			Description: desc[1],
		})
	}
	return infos
}

// CalculateFees returns amount x the per-method rate, rounded to two places.
func (r *Registry) CalculateFees(amount models.Money, method string) models.Money {
	rate, ok := feeRates[method]
	if !ok {
		rate = defaultFeeRate
	}
	return models.Money{Amount: amount.Amount.Mul(rate).Round(2)}
}
