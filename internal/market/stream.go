package market

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"tradesim-go/internal/signal"
)

const defaultStreamURL = "wss://stream.binance.com:9443"

type binanceEnvelope struct {
	Stream string           `json:"stream"`
	Data   binanceKlineData `json:"data"`
}

type binanceKlineData struct {
	Symbol string `json:"s"`
	Kline  struct {
		OpenTime  int64  `json:"t"`
		CloseTime int64  `json:"T"`
		Close     string `json:"c"`
		Closed    bool   `json:"x"`
	} `json:"k"`
}

// KlineStream emits one bar per closed Binance kline for each tracked symbol.
type KlineStream struct {
	symbols  []string
	interval string
	baseURL  string
	log      zerolog.Logger
}

// StreamOption configures KlineStream construction parameters.
type StreamOption func(*KlineStream)

// WithStreamURL overrides the websocket host.
func WithStreamURL(base string) StreamOption {
	return func(s *KlineStream) {
		if base != "" {
			s.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithStreamInterval sets the kline interval (1m, 1h, 1d ...).
func WithStreamInterval(interval string) StreamOption {
	return func(s *KlineStream) {
		if interval != "" {
			s.interval = interval
		}
	}
}

// NewKlineStream tracks the given symbols, deduplicated and sorted.
func NewKlineStream(symbols []string, log zerolog.Logger, opts ...StreamOption) *KlineStream {
	s := &KlineStream{
		symbols:  normalizeSymbols(symbols),
		interval: "1m",
		baseURL:  defaultStreamURL,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeSymbols(symbols []string) []string {
	unique := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		unique[sym] = struct{}{}
	}
	out := make([]string, 0, len(unique))
	for sym := range unique {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Symbols returns the tracked symbols.
func (s *KlineStream) Symbols() []string {
	out := make([]string, len(s.symbols))
	copy(out, s.symbols)
	return out
}

// URL returns the combined stream endpoint.
func (s *KlineStream) URL() string {
	streams := make([]string, len(s.symbols))
	for i, sym := range s.symbols {
		streams[i] = strings.ToLower(sym) + "@kline_" + s.interval
	}
	return fmt.Sprintf("%s/stream?streams=%s", s.baseURL, strings.Join(streams, "/"))
}

// Run pushes closed bars onto out until the context is canceled, reconnecting
// with capped exponential backoff.
func (s *KlineStream) Run(ctx context.Context, out chan<- signal.Bar) error {
	if len(s.symbols) == 0 {
		return fmt.Errorf("kline stream requires at least one symbol")
	}
	url := s.URL()
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.consume(ctx, url, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn().Err(err).Dur("backoff", backoff).Msg("kline stream disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		return nil
	}
}

func (s *KlineStream) consume(ctx context.Context, url string, out chan<- signal.Bar) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	s.log.Info().Strs("symbols", s.symbols).Str("interval", s.interval).Msg("connected kline stream")

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					s.log.Warn().Err(err).Msg("kline stream ping failed")
					return
				}
			case <-pingCtx.Done():
				// Unblock ReadMessage on shutdown.
				_ = conn.Close()
				return
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))

		bar, ok, err := decodeKline(message)
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to decode kline message")
			continue
		}
		if !ok {
			continue
		}
		select {
		case out <- bar:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// decodeKline returns a bar for a closed kline; open klines report ok=false.
func decodeKline(message []byte) (signal.Bar, bool, error) {
	var env binanceEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return signal.Bar{}, false, err
	}
	if !env.Data.Kline.Closed {
		return signal.Bar{}, false, nil
	}
	px, err := strconv.ParseFloat(env.Data.Kline.Close, 64)
	if err != nil {
		return signal.Bar{}, false, fmt.Errorf("invalid close: %w", err)
	}
	if !signal.ValidPrice(px) {
		return signal.Bar{}, false, fmt.Errorf("invalid close %q: %w", env.Data.Kline.Close, signal.ErrBadPrice)
	}
	symbol := env.Data.Symbol
	if symbol == "" {
		symbol = parseStreamSymbol(env.Stream)
	}
	return signal.Bar{
		Symbol: strings.ToUpper(symbol),
		Close:  px,
		Ts:     time.UnixMilli(env.Data.Kline.CloseTime).UTC(),
	}, true, nil
}

func parseStreamSymbol(stream string) string {
	parts := strings.Split(stream, "@")
	if len(parts) == 0 || parts[0] == "" {
		return strings.ToUpper(stream)
	}
	return strings.ToUpper(parts[0])
}
