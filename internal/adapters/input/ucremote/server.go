package ucremote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"horizon-bridge/internal/domain/model"
	"horizon-bridge/internal/domain/setup"
	"horizon-bridge/internal/ports"
)

const version = "1.0.0"

// Server is the host-facing websocket endpoint. It dispatches requests to
// the driver, runs the setup wizard and pushes entity and driver state
// events. It implements ports.HostNotifier.
type Server struct {
	upgrader websocket.Upgrader

	driver ports.Driver
	flow   *setup.Flow

	mu          sync.Mutex
	conns       map[*connection]struct{}
	subscribed  map[string]bool
	driverState ports.DriverState
	httpSrv     *http.Server
}

// connection serializes writes; gorilla allows one concurrent writer.
type connection struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *connection) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

func NewServer() *Server {
	return &Server{
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		conns:       make(map[*connection]struct{}),
		subscribed:  make(map[string]bool),
		driverState: ports.DriverDisconnected,
	}
}

// Bind attaches the driver and the setup flow. Separate from the constructor
// because the driver's notifier is this server.
func (s *Server) Bind(driver ports.Driver, flow *setup.Flow) {
	s.driver = driver
	s.flow = flow
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebsocket)

	srv := &http.Server{Addr: addr, Handler: mux}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("host endpoint listening")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := &connection{ws: ws}
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	log.Info().Str("remote", ws.RemoteAddr().String()).Msg("remote connected")

	s.driver.OnRemoteConnect(r.Context())

	s.readLoop(r.Context(), conn)

	s.mu.Lock()
	delete(s.conns, conn)
	remaining := len(s.conns)
	s.mu.Unlock()
	_ = ws.Close()

	log.Info().Str("remote", ws.RemoteAddr().String()).Msg("remote disconnected")
	if remaining == 0 {
		s.driver.OnRemoteDisconnect(context.Background())
	}
}

func (s *Server) readLoop(ctx context.Context, conn *connection) {
	for {
		var req request
		if err := conn.ws.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("websocket read ended")
			}
			return
		}
		s.dispatch(ctx, conn, &req)
	}
}

func (s *Server) dispatch(ctx context.Context, conn *connection, req *request) {
	log.Debug().Str("msg", req.Msg).Int("id", req.ID).Msg("host request")

	switch req.Msg {
	case "get_driver_version":
		s.respond(conn, req, http.StatusOK, "driver_version", map[string]string{
			"name": "Horizon TV", "version": version,
		})

	case "get_driver_metadata":
		s.respond(conn, req, http.StatusOK, "driver_metadata", metadata(version))

	case "get_device_state":
		s.mu.Lock()
		state := s.driverState
		s.mu.Unlock()
		s.respond(conn, req, http.StatusOK, "device_state", map[string]any{"state": state})

	case "get_available_entities":
		s.respond(conn, req, http.StatusOK, "available_entities", map[string]any{
			"available_entities": s.driver.AvailableEntities(),
		})

	case "subscribe_events":
		var payload subscribePayload
		if err := json.Unmarshal(req.MsgData, &payload); err != nil {
			s.respond(conn, req, http.StatusBadRequest, "result", nil)
			return
		}
		s.mu.Lock()
		for _, id := range payload.EntityIDs {
			s.subscribed[id] = true
		}
		s.mu.Unlock()
		s.driver.Subscribe(ctx, payload.EntityIDs)
		s.respond(conn, req, http.StatusOK, "result", nil)

	case "unsubscribe_events":
		var payload subscribePayload
		if err := json.Unmarshal(req.MsgData, &payload); err != nil {
			s.respond(conn, req, http.StatusBadRequest, "result", nil)
			return
		}
		s.mu.Lock()
		for _, id := range payload.EntityIDs {
			delete(s.subscribed, id)
		}
		s.mu.Unlock()
		s.respond(conn, req, http.StatusOK, "result", nil)

	case "entity_command":
		var payload commandPayload
		if err := json.Unmarshal(req.MsgData, &payload); err != nil {
			s.respond(conn, req, http.StatusBadRequest, "result", nil)
			return
		}
		code := s.driver.HandleCommand(ctx, payload.EntityID, payload.CmdID, payload.Params)
		s.respond(conn, req, int(code), "result", nil)

	case "setup_driver":
		var payload setupPayload
		if err := json.Unmarshal(req.MsgData, &payload); err != nil {
			s.respond(conn, req, http.StatusBadRequest, "result", nil)
			return
		}
		s.respond(conn, req, http.StatusOK, "result", nil)
		go s.runSetup(payload.SetupData)

	case "set_driver_user_data":
		// Wizard input submitted after the initial setup request.
		var payload userDataPayload
		if err := json.Unmarshal(req.MsgData, &payload); err != nil {
			s.respond(conn, req, http.StatusBadRequest, "result", nil)
			return
		}
		s.respond(conn, req, http.StatusOK, "result", nil)
		go s.runSetup(payload.InputValues)

	case "abort_driver_setup":
		s.flow.Reset()
		s.respond(conn, req, http.StatusOK, "result", nil)

	default:
		log.Warn().Str("msg", req.Msg).Msg("unknown host request")
		s.respond(conn, req, http.StatusNotImplemented, "result", nil)
	}
}

// runSetup drives the setup flow and reports the outcome as an event, with
// auth and not-found failures kept distinguishable for the host UI.
func (s *Server) runSetup(values map[string]any) {
	s.flow.Reset()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	_, err := s.flow.Submit(ctx, values)
	if err != nil {
		log.Error().Err(err).Msg("setup failed")
		s.broadcast("driver_setup_change", "DEVICE", setupChange{
			State: "ERROR",
			Error: setupErrorCode(err),
		})
		return
	}

	s.broadcast("driver_setup_change", "DEVICE", setupChange{State: "OK"})

	// Bring the freshly configured entities up without waiting for the host
	// to reconnect.
	s.driver.OnRemoteConnect(ctx)
}

func setupErrorCode(err error) string {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, model.ErrAuthentication):
		return "CONNECTION_REFUSED"
	default:
		return "OTHER"
	}
}

func (s *Server) respond(conn *connection, req *request, code int, msg string, data any) {
	err := conn.send(response{Kind: "resp", ReqID: req.ID, Code: code, Msg: msg, MsgData: data})
	if err != nil {
		log.Debug().Err(err).Str("msg", msg).Msg("response write failed")
	}
}

// broadcast sends an event to every connected remote.
func (s *Server) broadcast(msg, cat string, data any) {
	evt := event{Kind: "event", ID: uuid.NewString(), Msg: msg, Cat: cat, MsgData: data}

	s.mu.Lock()
	conns := make([]*connection, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := c.send(evt); err != nil {
			log.Debug().Err(err).Str("msg", msg).Msg("event write failed")
		}
	}
}

// PushAttributes implements ports.HostNotifier. Updates for entities the host
// never subscribed to are dropped here.
func (s *Server) PushAttributes(entityID string, attrs model.Attributes) {
	s.mu.Lock()
	subscribed := s.subscribed[entityID]
	s.mu.Unlock()
	if !subscribed {
		return
	}

	_, kind := model.ParseEntityID(entityID)
	s.broadcast("entity_change", "ENTITY", entityChange{
		EntityID:   entityID,
		EntityType: kind,
		Attributes: attrs,
	})
}

// SetDriverState implements ports.HostNotifier.
func (s *Server) SetDriverState(state ports.DriverState) {
	s.mu.Lock()
	changed := s.driverState != state
	s.driverState = state
	s.mu.Unlock()

	if changed {
		log.Info().Str("state", string(state)).Msg("driver state changed")
		s.broadcast("device_state", "DEVICE", map[string]any{"state": state})
	}
}
