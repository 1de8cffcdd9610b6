package inventory

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
	"github.com/TeseySTD/ecommerce-order-saga/internal/redisx"
)

//go:embed scripts/reserve_stock.lua
var reserveStockScript string

const scriptReserveStock = "reserve_stock"

const (
	productKeyPrefix    = "product:stock:"
	reservedKeyPrefix   = "stock:reserved:"
	codeAlreadyReserved = "ALREADY_RESERVED"
	codeNotFound        = "NOT_FOUND"
	codeInsufficient    = "INSUFFICIENT_STOCK"
)

// RedisLedger stores stock as Redis hashes, one per product, with fields
// title, description, quantity and unit_price. The all-or-nothing decrement
// runs as a Lua script so concurrent reservations cannot interleave.
type RedisLedger struct {
	client *redisx.Client
}

func NewRedisLedger(client *redisx.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

// LoadScripts preloads the reservation script into the Redis script cache.
func (l *RedisLedger) LoadScripts(ctx context.Context) error {
	if _, err := l.client.LoadScript(ctx, scriptReserveStock, reserveStockScript); err != nil {
		return fmt.Errorf("failed to load script %s: %w", scriptReserveStock, err)
	}
	return nil
}

func productKey(productID string) string {
	return productKeyPrefix + productID
}

func (l *RedisLedger) BatchGet(ctx context.Context, productIDs []string) ([]StockRecord, error) {
	rdb := l.client.Client()

	pipe := rdb.Pipeline()
	seen := make(map[string]bool, len(productIDs))
	var order []string
	cmds := make(map[string]*redis.MapStringStringCmd, len(productIDs))
	for _, id := range productIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		order = append(order, id)
		cmds[id] = pipe.HGetAll(ctx, productKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}

	var result []StockRecord
	for _, id := range order {
		fields, err := cmds[id].Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read product %s: %w", id, err)
		}
		if len(fields) == 0 {
			continue
		}
		quantity, err := strconv.Atoi(fields["quantity"])
		if err != nil {
			return nil, fmt.Errorf("invalid quantity for product %s: %w", id, err)
		}
		unitPrice, err := strconv.ParseFloat(fields["unit_price"], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid unit_price for product %s: %w", id, err)
		}
		result = append(result, StockRecord{
			ProductID:   id,
			Title:       fields["title"],
			Description: fields["description"],
			Quantity:    quantity,
			UnitPrice:   unitPrice,
		})
	}
	return result, nil
}

// IsReserved checks for the reservation marker key set by the script.
func (l *RedisLedger) IsReserved(ctx context.Context, orderID string) (bool, error) {
	n, err := l.client.Client().Exists(ctx, reservedKeyPrefix+orderID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check reservation for order %s: %w", orderID, err)
	}
	return n > 0, nil
}

func (l *RedisLedger) Reserve(ctx context.Context, orderID string, lines []event.OrderItem) error {
	totals := aggregate(lines)
	ids := sortedIDs(totals)

	keys := make([]string, 0, len(ids)+1)
	keys = append(keys, reservedKeyPrefix+orderID)
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, productKey(id))
		args = append(args, totals[id])
	}

	result := l.client.EvalWithFallback(ctx, scriptReserveStock, reserveStockScript, keys, args...)
	if result.Err() != nil {
		return fmt.Errorf("failed to execute %s script: %w", scriptReserveStock, result.Err())
	}

	values, err := result.Slice()
	if err != nil {
		return fmt.Errorf("failed to parse script result: %w", err)
	}
	if len(values) < 3 {
		return fmt.Errorf("unexpected script result length: %d", len(values))
	}

	success, _ := toInt64(values[0])
	if success == 1 {
		return nil
	}

	errorCode, _ := values[1].(string)
	detail, _ := values[2].(string)
	failedID := strings.TrimPrefix(detail, productKeyPrefix)
	switch errorCode {
	case codeAlreadyReserved:
		return ErrAlreadyReserved
	case codeNotFound:
		return &MissingProductsError{ProductIDs: []string{failedID}}
	case codeInsufficient:
		return &InsufficientStockError{ProductIDs: []string{failedID}}
	default:
		return fmt.Errorf("reservation script failed with code %s", errorCode)
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}
