// Package loadgen drives synthetic payment traffic through the gateway for
// demos and capacity checks.
package loadgen

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/gammazero/workerpool"

	"github.com/kestrelpay/kestrel/internal/gateway"
	"github.com/kestrelpay/kestrel/internal/models"
)

// Processor is the slice of the gateway the generator needs.
type Processor interface {
	ProcessPayment(ctx context.Context, req gateway.PaymentRequest) (models.PaymentResult, error)
}

// Summary aggregates one batch run.
type Summary struct {
	Total         int     `json:"total"`
	Approved      int     `json:"approved"`
	Declined      int     `json:"declined"`
	Errors        int     `json:"errors"`
	TotalAttempts int     `json:"total_attempts"`
	DurationMS    float64 `json:"duration_ms"`
}

// Generator submits randomized payments through a bounded worker pool.
type Generator struct {
	proc        Processor
	concurrency int

	randFloat func() float64  // test hook
	randIntN  func(n int) int // test hook
}

// New creates a generator running at the given concurrency (minimum 1).
func New(proc Processor, concurrency int) *Generator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Generator{
		proc:        proc,
		concurrency: concurrency,
		randFloat:   rand.Float64,
		randIntN:    rand.Intn,
	}
}

// Run submits count synthetic payments and blocks until all settle. A
// cancelled context skips the remaining submissions; in-flight payments run
// to completion.
func (g *Generator) Run(ctx context.Context, count int) Summary {
	wp := workerpool.New(g.concurrency)
	start := time.Now()

	var mu sync.Mutex
	summary := Summary{Total: count}

	for i := 0; i < count; i++ {
		wp.Submit(func() {
			if ctx.Err() != nil {
				mu.Lock()
				summary.Errors++
				mu.Unlock()
				return
			}

			res, err := g.proc.ProcessPayment(ctx, g.randomRequest())

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				summary.Errors++
			case res.Success:
				summary.Approved++
			default:
				summary.Declined++
			}
			if res.Transaction != nil {
				summary.TotalAttempts += res.Transaction.Attempts
			}
		})
	}

	wp.StopWait()
	summary.DurationMS = float64(time.Since(start).Microseconds()) / 1000
	slog.Info("load batch complete",
		"total", summary.Total,
		"approved", summary.Approved,
		"declined", summary.Declined,
		"errors", summary.Errors,
	)
	return summary
}

var (
	loadCurrencies = []models.Currency{
		models.CurrencyUSD, models.CurrencyUSD, models.CurrencyUSD,
		models.CurrencyEUR, models.CurrencyEUR,
		models.CurrencyGBP, models.CurrencySGD, models.CurrencyTHB,
	}
	loadNetworks = []models.CardNetwork{
		models.NetworkVisa, models.NetworkVisa, models.NetworkVisa,
		models.NetworkMastercard, models.NetworkMastercard,
		models.NetworkAmex, models.NetworkDiscover, models.NetworkJCB,
	}
	loadMethods = []models.PaymentMethod{
		models.MethodCard, models.MethodCard, models.MethodCard, models.MethodCard,
		models.MethodDigitalWallet, models.MethodDigitalWallet,
		models.MethodBankTransfer,
	}
	loadRegions = []models.Region{
		models.RegionNorthAmerica, models.RegionNorthAmerica,
		models.RegionEurope, models.RegionEurope,
		models.RegionSoutheastAsia, models.RegionAsiaPacific,
	}
)

// randomRequest builds one synthetic payment: mostly small card payments in
// major currencies, with a tail of large amounts and riskier customers.
func (g *Generator) randomRequest() gateway.PaymentRequest {
	amount := 5 + g.randFloat()*495 // bulk of traffic
	switch g.randIntN(10) {
	case 0:
		amount = 500 + g.randFloat()*4500
	case 1:
		amount = 5000 + g.randFloat()*15000
	}
	amount = float64(int(amount*100)) / 100

	method := loadMethods[g.randIntN(len(loadMethods))]
	instrument := &models.PaymentInstrument{Method: method}
	if method == models.MethodCard {
		instrument.Network = loadNetworks[g.randIntN(len(loadNetworks))]
		instrument.LastFour = fmt.Sprintf("%04d", g.randIntN(10000))
	}

	risk := models.RiskLow
	score := g.randFloat()
	switch {
	case score > 0.9:
		risk = models.RiskHigh
	case score > 0.6:
		risk = models.RiskMedium
	}

	return gateway.PaymentRequest{
		Amount:     amount,
		Currency:   loadCurrencies[g.randIntN(len(loadCurrencies))],
		Instrument: instrument,
		Customer: &models.CustomerInfo{
			CustomerID: fmt.Sprintf("load-cust-%04d", g.randIntN(10000)),
			Region:     loadRegions[g.randIntN(len(loadRegions))],
			RiskLevel:  risk,
		},
		MerchantID: fmt.Sprintf("load-merch-%02d", g.randIntN(20)),
		RiskScore:  score,
		Metadata:   map[string]any{"source": "loadgen"},
	}
}
