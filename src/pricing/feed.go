package pricing

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradingcore/src/traderr"
)

// PriceHandler receives every accepted tick. The mark-to-market path hangs
// off this callback.
type PriceHandler func(symbol string, price decimal.Decimal, at time.Time)

// subscribeMessage is the upstream subscription envelope.
type subscribeMessage struct {
	Method       string                 `json:"method"`
	Subscription map[string]interface{} `json:"subscription"`
}

// midsMessage carries a batch of mid prices keyed by symbol, quoted as
// strings.
type midsMessage struct {
	Channel string `json:"channel"`
	Data    struct {
		Mids map[string]string `json:"mids"`
	} `json:"data"`
}

// Feed maintains a websocket subscription to the exchange price stream and
// keeps the latest quote per symbol. It implements Source; reads fall back
// to the cache so a short disconnect does not break order validation.
type Feed struct {
	cfg     Config
	cache   *StaticSource
	handler PriceHandler

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFeed creates a feed. handler may be nil.
func NewFeed(cfg Config, handler PriceHandler) *Feed {
	return &Feed{
		cfg:     cfg,
		cache:   NewStaticSource(cfg.MaxQuoteAge),
		handler: handler,
	}
}

// LatestPrice returns the most recent cached tick for a symbol.
func (f *Feed) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return f.cache.LatestPrice(ctx, symbol)
}

// Start dials the feed and launches the read and ping loops.
func (f *Feed) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	if err := f.connect(); err != nil {
		cancel()
		return err
	}

	f.wg.Add(2)
	go f.readLoop(ctx)
	go f.pingLoop(ctx)

	logger.WithFields(map[string]interface{}{
		"feed":    "pricing",
		"url":     f.cfg.FeedURL,
		"symbols": f.cfg.FeedSymbols,
	}).Info("Price feed started")

	return nil
}

// Stop cancels the loops and closes the connection.
func (f *Feed) Stop() error {
	if f.cancel != nil {
		f.cancel()
	}

	f.mu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(10 * time.Second):
		return traderr.ExecutionFailed(nil, "price feed shutdown timed out")
	}
}

func (f *Feed) connect() error {
	dialer := &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}

	conn, _, err := dialer.Dial(f.cfg.FeedURL, nil)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	return f.subscribe()
}

func (f *Feed) subscribe() error {
	msg := subscribeMessage{
		Method: "subscribe",
		Subscription: map[string]interface{}{
			"type": "allMids",
		},
	}
	return f.writeJSON(msg)
}

func (f *Feed) writeJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conn == nil {
		return traderr.ExecutionFailed(nil, "price feed not connected")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return f.conn.WriteMessage(websocket.TextMessage, data)
}

func (f *Feed) readLoop(ctx context.Context) {
	defer f.wg.Done()

	reconnects := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		f.mu.Lock()
		conn := f.conn
		f.mu.Unlock()

		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			if reconnects >= f.cfg.MaxReconnects {
				logger.WithFields(map[string]interface{}{
					"feed":       "pricing",
					"reconnects": reconnects,
				}).WithError(err).Error("Price feed gave up reconnecting")

				return
			}

			reconnects++
			logger.WithFields(map[string]interface{}{
				"feed":    "pricing",
				"attempt": reconnects,
			}).WithError(err).Warn("Price feed read failed, reconnecting")

			time.Sleep(f.cfg.ReconnectDelay)

			if err := f.connect(); err != nil {
				logger.WithError(err).Warn("Price feed reconnect failed")
			}
			continue
		}

		reconnects = 0

		if msgType == websocket.TextMessage {
			f.handleMessage(data)
		}
	}
}

func (f *Feed) handleMessage(data []byte) {
	var mids midsMessage
	if err := json.Unmarshal(data, &mids); err != nil || mids.Channel != "allMids" {
		return
	}

	now := time.Now()

	for symbol, raw := range mids.Data.Mids {
		price, err := decimal.NewFromString(raw)
		if err != nil || price.LessThanOrEqual(decimal.Zero) {
			continue
		}

		f.cache.SetAt(symbol, price, now)

		if f.handler != nil {
			f.handler(symbol, price, now)
		}
	}
}

func (f *Feed) pingLoop(ctx context.Context) {
	defer f.wg.Done()

	ticker := time.NewTicker(f.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.mu.Lock()
			conn := f.conn
			f.mu.Unlock()

			if conn == nil {
				continue
			}

			if err := conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				logger.WithError(err).Debug("Price feed ping failed")
			}
		}
	}
}
