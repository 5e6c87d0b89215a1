package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/acairampoma/hc-medico/internal/domain"
	apperrors "github.com/acairampoma/hc-medico/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, body []byte) apperrors.ErrorResponse {
	t.Helper()
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestGetAllVitals(t *testing.T) {
	srv := newTestServer(t, &mockMonitorService{})

	rec := serve(srv, http.MethodGet, "/api/vital-signs")

	require.Equal(t, http.StatusOK, rec.Code)
	var body domain.Monitoring
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.PatientsVitals, 2)
	assert.Equal(t, 5000, body.Metadata.RefreshInterval)
}

func TestGetBedVitals(t *testing.T) {
	srv := newTestServer(t, &mockMonitorService{})

	rec := serve(srv, http.MethodGet, "/api/vital-signs/101")

	require.Equal(t, http.StatusOK, rec.Code)
	var record domain.PatientVitalsRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "cáncer de pulmón", record.PatientInfo.Diagnosis)
	assert.Equal(t, 88, record.CurrentVitals.OxygenSaturation.Value)
}

func TestGetBedVitals_UnknownBed(t *testing.T) {
	srv := newTestServer(t, &mockMonitorService{})

	rec := serve(srv, http.MethodGet, "/api/vital-signs/999")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec.Body.Bytes())
	assert.Equal(t, "Paciente no encontrado", resp.Error)
	assert.Equal(t, apperrors.TypeNotFound, resp.Type)
}

func TestAcknowledgeAlert(t *testing.T) {
	var gotBed domain.BedID
	gotIndex := -1
	srv := newTestServer(t, &mockMonitorService{
		acknowledgeFn: func(_ context.Context, bedID domain.BedID, index int) error {
			gotBed, gotIndex = bedID, index
			return nil
		},
	})

	rec := serve(srv, http.MethodPost, "/api/vital-signs/101/acknowledge-alert/0")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Alerta reconocida"}`, rec.Body.String())
	assert.Equal(t, domain.BedID("101"), gotBed)
	assert.Equal(t, 0, gotIndex)
}

func TestAcknowledgeAlert_NotFound(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"unknown bed", domain.ErrBedNotFound, "Paciente no encontrado"},
		{"unknown index", domain.ErrAlertNotFound, "Alerta no encontrada"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &mockMonitorService{
				acknowledgeFn: func(context.Context, domain.BedID, int) error { return tt.err },
			})

			rec := serve(srv, http.MethodPost, "/api/vital-signs/101/acknowledge-alert/5")

			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, tt.wantMsg, decodeError(t, rec.Body.Bytes()).Error)
		})
	}
}

func TestAcknowledgeAlert_NonNumericIndex(t *testing.T) {
	called := false
	srv := newTestServer(t, &mockMonitorService{
		acknowledgeFn: func(context.Context, domain.BedID, int) error {
			called = true
			return nil
		},
	})

	rec := serve(srv, http.MethodPost, "/api/vital-signs/101/acknowledge-alert/first")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec.Body.Bytes())
	assert.Equal(t, apperrors.TypeValidation, resp.Type)
	assert.Equal(t, "first", resp.Context["alert_index"])
	assert.False(t, called)
}

func TestSimulateBed(t *testing.T) {
	srv := newTestServer(t, &mockMonitorService{})

	rec := serve(srv, http.MethodPost, "/api/vital-signs/102/simulate")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Message string                     `json:"message"`
		Data    domain.PatientVitalsRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Simulación iniciada para cama 102", body.Message)
	assert.Equal(t, "neumonía", body.Data.PatientInfo.Diagnosis)
}

func TestSimulateBed_UnknownBed(t *testing.T) {
	srv := newTestServer(t, &mockMonitorService{})

	rec := serve(srv, http.MethodPost, "/api/vital-signs/999/simulate")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Cama no encontrada", decodeError(t, rec.Body.Bytes()).Error)
}

func TestSimulateAll(t *testing.T) {
	calls := 0
	srv := newTestServer(t, &mockMonitorService{
		simulateAllFn: func(context.Context) { calls++ },
	})

	rec := serve(srv, http.MethodPost, "/api/vital-signs/simulate/all")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Simulación ejecutada para todos los pacientes"}`, rec.Body.String())
	assert.Equal(t, 1, calls)
}

func TestTestData(t *testing.T) {
	srv := newTestServer(t, &mockMonitorService{})

	rec := serve(srv, http.MethodGet, "/api/vital-signs/test/data")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status        string          `json:"status"`
		Message       string          `json:"message"`
		TotalPatients int             `json:"total_patients"`
		BedIDs        []string        `json:"bed_ids"`
		SampleData    domain.Document `json:"sample_data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "Datos cargados correctamente", body.Message)
	assert.Equal(t, 2, body.TotalPatients)
	assert.Equal(t, []string{"101", "102"}, body.BedIDs)
	assert.Len(t, body.SampleData.Monitoring.PatientsVitals, 2)
}

func TestRecentAlerts(t *testing.T) {
	gotLimit := 0
	srv := newTestServer(t, &mockMonitorService{
		recentAlertsFn: func(_ context.Context, n int) ([]domain.StreamedAlert, error) {
			gotLimit = n
			return []domain.StreamedAlert{{
				ID:          "1717232400000-0",
				RaisedAlert: domain.RaisedAlert{BedID: "101", Alert: domain.Alert{Type: domain.AlertCritical, Message: "SpO2 crítica: 88%"}},
			}}, nil
		},
	})

	rec := serve(srv, http.MethodGet, "/api/vital-signs/alerts/recent")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultAlertLimit, gotLimit)
	assert.Contains(t, rec.Body.String(), `"count":1`)
	assert.Contains(t, rec.Body.String(), `"bed_id":"101"`)

	rec = serve(srv, http.MethodGet, "/api/vital-signs/alerts/recent?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, gotLimit)
}

func TestRecentAlerts_InvalidLimit(t *testing.T) {
	srv := newTestServer(t, &mockMonitorService{
		recentAlertsFn: func(context.Context, int) ([]domain.StreamedAlert, error) {
			t.Fatal("feed must not be queried")
			return nil, nil
		},
	})

	for _, limit := range []string{"0", "101", "-3", "ten"} {
		rec := serve(srv, http.MethodGet, "/api/vital-signs/alerts/recent?limit="+limit)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestRecentAlerts_NotConfigured(t *testing.T) {
	srv := newTestServer(t, &mockMonitorService{})

	rec := serve(srv, http.MethodGet, "/api/vital-signs/alerts/recent")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, apperrors.TypeUnavailable, decodeError(t, rec.Body.Bytes()).Type)
}

func TestRecentAlerts_BackendFailure(t *testing.T) {
	srv := newTestServer(t, &mockMonitorService{
		recentAlertsFn: func(context.Context, int) ([]domain.StreamedAlert, error) {
			return nil, apperrors.ExternalError("failed to read alert stream", errors.New("connection refused"))
		},
	})

	rec := serve(srv, http.MethodGet, "/api/vital-signs/alerts/recent")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestAlertHistory(t *testing.T) {
	srv := newTestServer(t, &mockMonitorService{
		alertHistoryFn: func(_ context.Context, bedID domain.BedID, limit int) ([]domain.ArchivedAlert, error) {
			return []domain.ArchivedAlert{
				{ID: 2, BedID: bedID, Type: domain.AlertWarning, Message: "Fiebre: 38.4°C"},
				{ID: 1, BedID: bedID, Type: domain.AlertCritical, Message: "SpO2 crítica: 88%"},
			}, nil
		},
	})

	rec := serve(srv, http.MethodGet, "/api/vital-signs/101/alerts/history?limit=10")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		BedID  string                 `json:"bed_id"`
		Alerts []domain.ArchivedAlert `json:"alerts"`
		Count  int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "101", body.BedID)
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, int64(2), body.Alerts[0].ID)
}

func TestAlertHistory_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown bed", domain.ErrBedNotFound, http.StatusNotFound},
		{"archive disabled", domain.ErrNotConfigured, http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &mockMonitorService{
				alertHistoryFn: func(context.Context, domain.BedID, int) ([]domain.ArchivedAlert, error) {
					return nil, tt.err
				},
			})

			rec := serve(srv, http.MethodGet, "/api/vital-signs/101/alerts/history")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.NotContains(t, rec.Body.String(), "boom")
		})
	}
}

func TestVitalsRoutes_RateLimited(t *testing.T) {
	srv := newTestServer(t, &mockMonitorService{}, func(s *Server) {
		s.config.APIRateLimit = 0.01
		s.config.APIRateBurst = 1
	})

	assert.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/api/vital-signs").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(srv, http.MethodGet, "/api/vital-signs").Code)
}

func TestUnknownRoute_JSONError(t *testing.T) {
	srv := newTestServer(t, &mockMonitorService{})

	rec := serve(srv, http.MethodGet, "/api/does-not-exist")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec.Body.Bytes())
	assert.Equal(t, apperrors.TypeNotFound, resp.Type)
	assert.Equal(t, "Recurso no encontrado", resp.Error)
}
