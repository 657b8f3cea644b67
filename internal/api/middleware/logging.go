package middleware

import (
	"net/http"
	"time"

	"dcabot/pkg/utils"
)

// responseWriter оборачивает http.ResponseWriter для захвата статуса ответа
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

// Logging - middleware для структурированного логирования HTTP запросов
//
// Назначение:
// Логирует метод, путь, статус ответа, размер тела и задержку каждого
// запроса. Эндпоинт /metrics не логируется - Prometheus скрейпит его
// каждые несколько секунд и засоряет лог.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		utils.L().Info("HTTP запрос",
			utils.String("method", r.Method),
			utils.String("path", r.URL.Path),
			utils.Int("status", rw.statusCode),
			utils.Int("bytes", rw.written),
			utils.Latency(float64(time.Since(start).Microseconds())/1000.0),
			utils.String("remote", r.RemoteAddr),
		)
	})
}
