package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		checker    Checker
		wantCode   int
		wantStatus string
		wantDB     string
		wantSolana string
	}{
		{
			name: "all_ok",
			checker: Checker{
				DBPing:     func(ctx context.Context) error { return nil },
				SolanaPing: func(ctx context.Context) error { return nil },
			},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantDB:     "ok",
			wantSolana: "ok",
		},
		{
			name: "db_fail",
			checker: Checker{
				DBPing:     func(ctx context.Context) error { return context.DeadlineExceeded },
				SolanaPing: func(ctx context.Context) error { return nil },
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
			wantDB:     "fail",
			wantSolana: "ok",
		},
		{
			name: "solana_fail",
			checker: Checker{
				DBPing:     func(ctx context.Context) error { return nil },
				SolanaPing: func(ctx context.Context) error { return context.DeadlineExceeded },
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
			wantDB:     "ok",
			wantSolana: "fail",
		},
		{
			name: "both_fail",
			checker: Checker{
				DBPing:     func(ctx context.Context) error { return context.DeadlineExceeded },
				SolanaPing: func(ctx context.Context) error { return context.DeadlineExceeded },
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
			wantDB:     "fail",
			wantSolana: "fail",
		},
		{
			name:       "no_checkers",
			checker:    Checker{},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := Serve(":0", tt.checker)
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = Shutdown(ctx, srv)
			}()

			req := httptest.NewRequest(http.MethodGet, "http://localhost/healthz", nil)
			w := httptest.NewRecorder()

			srv.Handler.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}

			var resp map[string]string
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}

			if resp["status"] != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp["status"], tt.wantStatus)
			}
			if tt.wantDB != "" && resp["db"] != tt.wantDB {
				t.Errorf("db = %q, want %q", resp["db"], tt.wantDB)
			}
			if tt.wantSolana != "" && resp["solana"] != tt.wantSolana {
				t.Errorf("solana = %q, want %q", resp["solana"], tt.wantSolana)
			}
		})
	}
}
