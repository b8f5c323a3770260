package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/TemirB/foodcart/internal/config"
	"github.com/TemirB/foodcart/internal/domain"
	"github.com/TemirB/foodcart/internal/kafka"
	"github.com/TemirB/foodcart/internal/observability"
)

// A short address list so that most submissions hit an existing place.
var addresses = []string{
	"Москва, Красная площадь, 1",
	"Москва, ул. Арбат, 10",
	"Москва, Тверская ул., 7",
	"Санкт-Петербург, Невский проспект, 28",
	"Казань, ул. Баумана, 58",
	"Новосибирск, Красный проспект, 25",
}

var names = []string{"Иван", "Мария", "Алексей", "Ольга", "Дмитрий", "Анна"}

type Spammer struct {
	writer    *kafkago.Writer
	logger    *zap.Logger
	products  int
	isRunning atomic.Bool
	wg        sync.WaitGroup
	mu        sync.Mutex
	cancel    context.CancelFunc
	totalSent atomic.Int64
}

type SpamRequest struct {
	Rate     int    `json:"rate"`
	Duration string `json:"duration"`
}

func NewSpammer(writer *kafkago.Writer, products int, logger *zap.Logger) *Spammer {
	return &Spammer{
		writer:   writer,
		logger:   logger,
		products: products,
	}
}

func (s *Spammer) StartSpam(rate int, duration time.Duration) {
	if !s.isRunning.CompareAndSwap(false, true) {
		return
	}
	s.totalSent.Store(0)

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Info("Starting spam", zap.Int("rate", rate), zap.Duration("duration", duration))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.isRunning.Store(false)
		defer cancel()

		ticker := time.NewTicker(time.Second / time.Duration(rate))
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				payload, err := json.Marshal(generateFakeOrder(s.products))
				if err != nil {
					s.logger.Error("Error marshaling message", zap.Error(err))
					continue
				}
				if err := s.writer.WriteMessages(ctx, kafkago.Message{Value: payload, Time: time.Now()}); err != nil {
					if ctx.Err() == nil {
						s.logger.Warn("Error sending message to Kafka", zap.Error(err))
					}
					continue
				}
				s.totalSent.Add(1)

			case <-ctx.Done():
				s.logger.Info("Spam finished", zap.Int64("total_sent", s.totalSent.Load()))
				return
			}
		}
	}()
}

func (s *Spammer) StopSpam() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Spammer) Close() {
	s.StopSpam()
	_ = s.writer.Close()
}

func generateFakeOrder(products int) domain.OrderInput {
	items := make([]domain.ItemInput, 1+rand.Intn(3))
	for i := range items {
		items[i] = domain.ItemInput{
			ProductID: int64(1 + rand.Intn(products)),
			Quantity:  1 + rand.Intn(3),
		}
	}
	return domain.OrderInput{
		Firstname:   names[rand.Intn(len(names))],
		Lastname:    "Тестов",
		Phonenumber: "+7900" + randomDigits(7),
		Address:     addresses[rand.Intn(len(addresses))],
		Products:    items,
	}
}

func randomDigits(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('0' + rand.Intn(10))
	}
	return string(b)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func main() {
	logger, err := observability.NewLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.LoadKafka()
	if !cfg.Enabled() {
		cfg.Brokers = []string{"kafka:9092"}
	}

	spammer := NewSpammer(kafka.NewWriter(cfg), 5, logger)
	defer spammer.Close()

	r := chi.NewRouter()
	r.Post("/start", func(w http.ResponseWriter, r *http.Request) {
		var req SpamRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if req.Rate <= 0 {
			req.Rate = 10
		}
		duration, err := time.ParseDuration(req.Duration)
		if err != nil || duration <= 0 {
			http.Error(w, "Invalid duration", http.StatusBadRequest)
			return
		}

		spammer.StartSpam(req.Rate, duration)
		writeJSON(w, map[string]any{
			"status":   "started",
			"rate":     req.Rate,
			"duration": duration.String(),
		})
	})
	r.Post("/stop", func(w http.ResponseWriter, _ *http.Request) {
		spammer.StopSpam()
		writeJSON(w, map[string]any{
			"status":     "stopped",
			"total_sent": spammer.totalSent.Load(),
		})
	})
	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"is_running": spammer.isRunning.Load(),
			"total_sent": spammer.totalSent.Load(),
		})
	})

	port := ":8082"
	if envPort := os.Getenv("SPAMMER_PORT"); envPort != "" {
		port = ":" + envPort
	}

	logger.Info("Spammer server started",
		zap.String("addr", port),
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
	)
	srv := &http.Server{Addr: port, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("spammer server", zap.Error(err))
	}
}
