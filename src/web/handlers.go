// handlers.go
package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"FlightAnalytics/src/processor"
	"FlightAnalytics/src/report"
)

const (
	maxTopN  = 100
	xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var ErrBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse reports whether a dataset is loaded and how it was built.
type HealthResponse struct {
	Status   string              `json:"status"`
	Records  int                 `json:"records"`
	Stats    processor.LoadStats `json:"stats"`
	LoadedAt time.Time           `json:"loaded_at"`
}

// YearsResponse describes the dashboard controls: the year slider bounds
// and marks, and the top-N choices.
type YearsResponse struct {
	From        int   `json:"from"`
	To          int   `json:"to"`
	Years       []int `json:"years"`
	TopNChoices []int `json:"top_n_choices"`
	DefaultTopN int   `json:"default_top_n"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, processor.ErrUnknownMetric):
		return http.StatusBadRequest
	case errors.Is(err, processor.ErrNoDataset):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error(err.Error())
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func parseInt(q url.Values, key string) (int, bool, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s must be an integer, got %q", ErrBadRequest, key, raw)
	}
	return v, true, nil
}

// parseRange reads from/to, defaulting each bound to the full range of ds.
func parseRange(q url.Values, ds *processor.Dataset) (processor.YearRange, error) {
	r := processor.FullRange(ds)
	if from, ok, err := parseInt(q, "from"); err != nil {
		return r, err
	} else if ok {
		r.From = from
	}
	if to, ok, err := parseInt(q, "to"); err != nil {
		return r, err
	} else if ok {
		r.To = to
	}
	return r, nil
}

func (s *Server) parseTopN(q url.Values) (int, error) {
	n, ok, err := parseInt(q, "n")
	if err != nil {
		return 0, err
	}
	if !ok {
		return s.dcfg.DefaultTopN, nil
	}
	if n < 1 || n > maxTopN {
		return 0, fmt.Errorf("%w: n must be between 1 and %d", ErrBadRequest, maxTopN)
	}
	return n, nil
}

func parseMetric(q url.Values) (processor.Metric, error) {
	raw := q.Get("type")
	if raw == "" {
		return processor.MetricDomestic, nil
	}
	return processor.ParseMetric(raw)
}

// withRange resolves the dataset and year range, then hands both to fn.
func (s *Server) withRange(fn func(w http.ResponseWriter, r *http.Request, ds *processor.Dataset, yr processor.YearRange)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds, err := s.data.GetDS()
		if err != nil {
			s.writeError(w, err)
			return
		}
		yr, err := parseRange(r.URL.Query(), ds)
		if err != nil {
			s.writeError(w, err)
			return
		}
		fn(w, r, ds, yr)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds, err := s.data.GetDS()
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, health(ds))
	}
}

func health(ds *processor.Dataset) HealthResponse {
	return HealthResponse{Status: "ok", Records: ds.Len(), Stats: ds.Stats(), LoadedAt: ds.LoadedAt()}
}

func (s *Server) YearsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds, err := s.data.GetDS()
		if err != nil {
			s.writeError(w, err)
			return
		}
		full := processor.FullRange(ds)
		writeJSON(w, http.StatusOK, YearsResponse{
			From:        full.From,
			To:          full.To,
			Years:       ds.Years(),
			TopNChoices: s.dcfg.TopNChoices,
			DefaultTopN: s.dcfg.DefaultTopN,
		})
	}
}

func (s *Server) YearlyTotalHandler() http.HandlerFunc {
	return s.withRange(func(w http.ResponseWriter, r *http.Request, ds *processor.Dataset, yr processor.YearRange) {
		writeJSON(w, http.StatusOK, processor.YearlyTotal(ds, yr))
	})
}

func (s *Server) YearlyDomesticHandler() http.HandlerFunc {
	return s.withRange(func(w http.ResponseWriter, r *http.Request, ds *processor.Dataset, yr processor.YearRange) {
		writeJSON(w, http.StatusOK, processor.YearlyDomestic(ds, yr))
	})
}

func (s *Server) YearlyInternationalHandler() http.HandlerFunc {
	return s.withRange(func(w http.ResponseWriter, r *http.Request, ds *processor.Dataset, yr processor.YearRange) {
		writeJSON(w, http.StatusOK, processor.YearlyInternational(ds, yr))
	})
}

func (s *Server) PassengersHandler() http.HandlerFunc {
	return s.withRange(func(w http.ResponseWriter, r *http.Request, ds *processor.Dataset, yr processor.YearRange) {
		metric, err := parseMetric(r.URL.Query())
		if err != nil {
			s.writeError(w, err)
			return
		}
		trend, err := processor.PassengerTrend(ds, yr, metric)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, trend)
	})
}

func (s *Server) AirportsHandler() http.HandlerFunc {
	return s.withRange(func(w http.ResponseWriter, r *http.Request, ds *processor.Dataset, yr processor.YearRange) {
		writeJSON(w, http.StatusOK, processor.AirportTotals(ds, yr))
	})
}

func (s *Server) TopHandler() http.HandlerFunc {
	return s.withRange(func(w http.ResponseWriter, r *http.Request, ds *processor.Dataset, yr processor.YearRange) {
		n, err := s.parseTopN(r.URL.Query())
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, processor.TopAirports(ds, yr, n))
	})
}

func (s *Server) DashboardHandler() http.HandlerFunc {
	return s.withRange(func(w http.ResponseWriter, r *http.Request, ds *processor.Dataset, yr processor.YearRange) {
		q := r.URL.Query()
		metric, err := parseMetric(q)
		if err != nil {
			s.writeError(w, err)
			return
		}
		n, err := s.parseTopN(q)
		if err != nil {
			s.writeError(w, err)
			return
		}
		dash, err := processor.BuildDashboard(ds, processor.Query{Range: yr, Metric: metric, TopN: n})
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dash)
	})
}

func (s *Server) ReportHandler() http.HandlerFunc {
	return s.withRange(func(w http.ResponseWriter, r *http.Request, ds *processor.Dataset, yr processor.YearRange) {
		n, err := s.parseTopN(r.URL.Query())
		if err != nil {
			s.writeError(w, err)
			return
		}

		var buf bytes.Buffer
		if err := report.WriteWorkbook(&buf, ds, yr, n); err != nil {
			s.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", xlsxType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="passengers_%d_%d.xlsx"`, yr.From, yr.To))
		w.Write(buf.Bytes())
	})
}

// ReloadHandler rebuilds the dataset from the source files. A failed load
// keeps serving the previous dataset.
func (s *Server) ReloadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds, err := s.data.Reload(s.load)
		if err != nil {
			s.log.Error("reload failed, keeping previous dataset: " + err.Error())
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		s.log.Info("dataset reloaded: " + ds.Stats().String())
		writeJSON(w, http.StatusOK, health(ds))
	}
}

// LogsHandler streams log entries to the client until it disconnects.
func (s *Server) LogsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Transfer-Encoding", "chunked")

		logChan := s.log.Subscribe()
		defer s.log.Unsubscribe(logChan)

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		for {
			select {
			case msg := <-logChan:
				if _, err := fmt.Fprint(w, msg); err != nil {
					return
				}
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			case <-r.Context().Done():
				return
			}
		}
	}
}
