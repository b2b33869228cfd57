package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecastcli/internal/config"
	"forecastcli/internal/simulation"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	data   []interface{}
}

func (n *recordingNotifier) Broadcast(messageType string, data interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, messageType)
	n.data = append(n.data, data)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.SimulationConfig {
	return config.SimulationConfig{
		DefaultTrials: 200,
		MaxTrials:     5000,
		DefaultSeed:   42,
		HistorySize:   3,
	}
}

func newTestService(t *testing.T, notifier Notifier) *ForecastService {
	t.Helper()
	svc, err := NewForecastService(testConfig(), notifier, quietLogger())
	require.NoError(t, err)
	return svc
}

func seed(v uint64) *uint64 { return &v }

func TestForecastService_RunDefaults(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := newTestService(t, notifier)

	record, err := svc.Run(context.Background(), RunRequest{})
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, 200, record.Trials)
	assert.Equal(t, uint64(42), record.Seed)
	assert.Equal(t, 200, record.Table().Trials())
	require.Len(t, record.Summary, len(simulation.DefaultStatisticsColumns))
	assert.Equal(t, simulation.ColMonthlyValue, record.Summary[0].Metric)

	assert.Equal(t, []string{EventRunStarted, EventRunCompleted}, notifier.events)
	completed, ok := notifier.data[1].(RunSummary)
	require.True(t, ok)
	assert.Equal(t, record.ID, completed.ID)
	assert.NotNil(t, completed.MeanMonthlyValue)
}

func TestForecastService_RunDeterministic(t *testing.T) {
	svc := newTestService(t, nil)

	a, err := svc.Run(context.Background(), RunRequest{Trials: 100, Seed: seed(7)})
	require.NoError(t, err)
	b, err := svc.Run(context.Background(), RunRequest{Trials: 100, Seed: seed(7)})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.Table().Equal(b.Table()))
}

func TestForecastService_RunParametersOverride(t *testing.T) {
	svc := newTestService(t, nil)

	record, err := svc.Run(context.Background(), RunRequest{
		Trials:     50,
		Parameters: []byte(`{"basic_subscribers": [0, 0], "pro_subscribers": [0, 0], "enterprise_subscribers": [0, 0]}`),
	})
	require.NoError(t, err)

	assert.Equal(t, simulation.R(0, 0), record.Parameters.BasicSubscribers)
	assert.Equal(t, simulation.DefaultParameters().BasicPrice, record.Parameters.BasicPrice)

	revenue, err := record.Table().Column(simulation.ColSubscriptionRevenue)
	require.NoError(t, err)
	assert.Equal(t, simulation.Fill(50, 0), revenue)

	// defaults are untouched by the override
	assert.Equal(t, simulation.DefaultParameters(), svc.DefaultParameters())
}

func TestForecastService_RunSportOverrideDoesNotLeak(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.Run(context.Background(), RunRequest{
		Trials:     10,
		Parameters: []byte(`{"sport_impacts": [{"name": "hockey", "impact": [0.9, 1.1], "weight": 1}]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, simulation.DefaultSportImpacts(), svc.DefaultParameters().SportImpacts)
}

func TestForecastService_RunRejects(t *testing.T) {
	tests := []struct {
		name  string
		req   RunRequest
		check func(t *testing.T, err error)
	}{
		{
			name: "negative trials",
			req:  RunRequest{Trials: -1},
			check: func(t *testing.T, err error) {
				var verrs validator.ValidationErrors
				assert.ErrorAs(t, err, &verrs)
			},
		},
		{
			name: "too many trials",
			req:  RunRequest{Trials: 5001},
			check: func(t *testing.T, err error) {
				var cfgErr *simulation.ConfigurationError
				require.ErrorAs(t, err, &cfgErr)
				assert.Equal(t, "trials", cfgErr.Parameter)
			},
		},
		{
			name: "malformed parameters",
			req:  RunRequest{Parameters: []byte(`{"basic_price": "cheap"}`)},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrInvalidRun)
			},
		},
		{
			name: "invalid range",
			req:  RunRequest{Parameters: []byte(`{"basic_price": [49, 29]}`)},
			check: func(t *testing.T, err error) {
				var cfgErr *simulation.ConfigurationError
				require.ErrorAs(t, err, &cfgErr)
				assert.Equal(t, "basic_price", cfgErr.Parameter)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &recordingNotifier{}
			svc := newTestService(t, notifier)

			_, err := svc.Run(context.Background(), tt.req)
			require.Error(t, err)
			tt.check(t, err)
			assert.Empty(t, svc.List())
			assert.Empty(t, notifier.events)
		})
	}
}

func TestForecastService_RunCancelled(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := newTestService(t, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Run(ctx, RunRequest{Trials: 10})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{EventRunStarted, EventRunFailed}, notifier.events)
	assert.Empty(t, svc.List())
}

func TestForecastService_HistoryBounded(t *testing.T) {
	svc := newTestService(t, nil)

	var ids []string
	for i := 0; i < 5; i++ {
		record, err := svc.Run(context.Background(), RunRequest{Trials: 10, Seed: seed(uint64(i))})
		require.NoError(t, err)
		ids = append(ids, record.ID)
	}

	list := svc.List()
	require.Len(t, list, 3)
	assert.Equal(t, ids[4], list[0].ID)
	assert.Equal(t, ids[2], list[2].ID)

	_, err := svc.Get(ids[0])
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = svc.Get(ids[4])
	assert.NoError(t, err)
}

func TestForecastService_Queries(t *testing.T) {
	svc := newTestService(t, nil)
	record, err := svc.Run(context.Background(), RunRequest{Trials: 300})
	require.NoError(t, err)

	stats, err := svc.Statistics(record.ID, []string{simulation.ColGrossProfit})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 300, stats[0].Valid)

	_, err = svc.Statistics(record.ID, []string{"nope"})
	var colErr *simulation.UnknownColumnError
	assert.ErrorAs(t, err, &colErr)

	ranking, err := svc.Sensitivity(record.ID, nil, "")
	require.NoError(t, err)
	assert.Len(t, ranking, len(simulation.DefaultSensitivityFactors))

	_, err = svc.Sensitivity("missing", nil, "")
	assert.ErrorIs(t, err, ErrRunNotFound)

	var buf bytes.Buffer
	require.NoError(t, svc.WriteTrialsCSV(context.Background(), record.ID, &buf))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 301)

	err = svc.WriteTrialsCSV(context.Background(), "missing", io.Discard)
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestForecastService_ConcurrentRuns(t *testing.T) {
	svc := newTestService(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Run(context.Background(), RunRequest{Trials: 20, Seed: seed(uint64(i))})
			assert.NoError(t, err)
			svc.List()
		}(i)
	}
	wg.Wait()

	assert.Len(t, svc.List(), 3)
}

func TestNewForecastService_ParametersFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("basic_price: [10, 20]\n"), 0644))

	cfg := testConfig()
	cfg.ParametersFile = path
	svc, err := NewForecastService(cfg, nil, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, simulation.R(10, 20), svc.DefaultParameters().BasicPrice)

	cfg.ParametersFile = filepath.Join(dir, "missing.yaml")
	_, err = NewForecastService(cfg, nil, quietLogger())
	assert.Error(t, err)
}
