package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandlerExposesBookMetrics(t *testing.T) {
	reg := Init(zap.NewNop())

	CommandsTotal.WithLabelValues("NEW", "ACCEPTED").Inc()
	PriceLevels.WithLabelValues("BID").Set(3)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `book_commands_total{kind="NEW",status="ACCEPTED"}`)
	assert.Contains(t, rec.Body.String(), `book_price_levels{side="BID"} 3`)
	assert.GreaterOrEqual(t, testutil.ToFloat64(CommandsTotal.WithLabelValues("NEW", "ACCEPTED")), 1.0)
}
