package server

import (
	"encoding/json"
	"net/http"
	_ "net/http/pprof" // Profiling

	"github.com/greysquirr3l/morgan-bevy/internal/editor"
	"github.com/greysquirr3l/morgan-bevy/internal/network"
	"github.com/greysquirr3l/morgan-bevy/internal/version"
	"github.com/greysquirr3l/morgan-bevy/pkg/logger"
)

type Server struct {
	Editor *editor.Service
	Hub    *network.Broadcaster
	Port   string
}

func New(svc *editor.Service, port string) *Server {
	return &Server{
		Editor: svc,
		Hub:    network.NewBroadcaster(),
		Port:   port,
	}
}

// Run запускает HTTP сервер
func (s *Server) Run() error {
	mux := http.DefaultServeMux

	// Регистрируем роуты
	mux.HandleFunc("/ws", enableCORS(s.handleWS))
	mux.HandleFunc("/health", enableCORS(s.handleHealth))
	mux.HandleFunc("/version", enableCORS(s.handleVersion))

	// Debug Routes
	debugHandler := NewDebugHandler(s.Editor, s.Hub)
	debugHandler.RegisterRoutes(mux)

	logger.Log.Infof("🧩 Morgan-Bevy Level Editor running on :%s", s.Port)
	return http.ListenAndServe(":"+s.Port, mux)
}

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Разрешаем запросы с фронтенда
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		next(w, r)
	}
}

// handleWS обрабатывает подключение по WebSocket
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("Upgrade error:", err)
		return
	}

	client := NewClient(s.Editor, s.Hub, conn)

	// Запускаем пампы
	go client.writePump()
	go client.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(version.Info())
}
