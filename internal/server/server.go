package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"nutriledger/internal/agent"
	"nutriledger/internal/ledger"
	"nutriledger/internal/models"
	"nutriledger/internal/norms"
	"nutriledger/internal/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, this should be more restrictive
	},
}

// Server is the chat-facing websocket transport. It owns no ledger state:
// every operation loads from the store, mutates and saves back, so two
// messages for the same user arriving on different connections contend
// only on the store's per-document locks.
type Server struct {
	store    *storage.Store
	ledger   *ledger.Service
	agents   *agent.Agents
	validate *validator.Validate
	clients  sync.Map
	// pendingClose holds the prepared history entry per user between
	// finish_day and confirm_finish.
	pendingClose sync.Map
	debug        bool
}

// New wires the transport to the ledger service and collaborator agents.
func New(store *storage.Store, ledgerService *ledger.Service, agents *agent.Agents, debug bool) *Server {
	if debug {
		log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
		log.Println("Debug logging enabled")
	}
	return &Server{
		store:    store,
		ledger:   ledgerService,
		agents:   agents,
		validate: validator.New(),
		debug:    debug,
	}
}

// Start runs the HTTP server until a shutdown signal arrives.
func (s *Server) Start(port string) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	http.HandleFunc("/ws", s.handleWebSocket)
	http.HandleFunc("/health", s.handleHealth)

	go func() {
		log.Printf("Starting server on port %s\n", port)
		if err := http.ListenAndServe(":"+port, nil); err != nil {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down server...")
	return nil
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("WebSocket upgrade failed:", err)
		return
	}
	defer conn.Close()

	clientID := uuid.New().String()
	s.clients.Store(clientID, conn)
	defer s.clients.Delete(clientID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Println("Error reading message:", err)
			break
		}

		var msg envelope
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Println("Error parsing message:", err)
			continue
		}

		s.handleMessage(conn, msg)
	}
}

func (s *Server) handleMessage(conn *websocket.Conn, msg envelope) {
	switch msg.Type {
	case "log_meal":
		s.handleLogMeal(conn, msg.Data)
	case "confirm_meal":
		s.handleConfirmMeal(conn, msg.Data)
	case "rescale_meal":
		s.handleRescaleMeal(conn, msg.Data)
	case "comment_meal":
		s.handleCommentMeal(conn, msg.Data)
	case "delete_meal":
		s.handleDeleteMeal(conn, msg.Data)
	case "get_today":
		s.handleGetToday(conn, msg.Data)
	case "get_history":
		s.handleGetHistory(conn, msg.Data)
	case "finish_day":
		s.handleFinishDay(conn, msg.Data)
	case "confirm_finish":
		s.handleConfirmFinish(conn, msg.Data)
	case "update_profile":
		s.handleUpdateProfile(conn, msg.Data)
	default:
		s.sendError(conn, "Unknown message type")
	}
}

// decode unmarshals and validates a request payload.
func (s *Server) decode(conn *websocket.Conn, data json.RawMessage, req any) bool {
	if err := json.Unmarshal(data, req); err != nil {
		s.sendError(conn, "Invalid message format")
		return false
	}
	if err := s.validate.Struct(req); err != nil {
		s.sendError(conn, "Invalid message format")
		return false
	}
	return true
}

// reportError maps internal errors onto user-facing transport replies. A
// store failure is reported as "persistence failed" so the caller never
// tells the user an operation succeeded when the write did not.
func (s *Server) reportError(conn *websocket.Conn, err error) {
	switch {
	case errors.Is(err, models.ErrMealNotFound):
		s.sendError(conn, "Meal not found")
	case errors.Is(err, models.ErrPercentOutOfRange):
		s.sendError(conn, "Percent must be between 1 and 100")
	case errors.Is(err, ledger.ErrNothingToClose):
		s.sendError(conn, "No confirmed meals to close")
	case errors.Is(err, storage.ErrStoreUnavailable):
		s.sendError(conn, "Persistence failed, please retry")
	case errors.Is(err, agent.ErrUnavailable):
		s.sendError(conn, "Assistant is unavailable, please retry")
	case errors.Is(err, agent.ErrInvalidPayload):
		s.sendError(conn, "Assistant response could not be used")
	default:
		s.sendError(conn, "Operation failed")
	}
}

type logMealRequest struct {
	UserID      string `json:"user_id" validate:"required"`
	MealType    string `json:"meal_type" validate:"required"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
	ImageRef    string `json:"image_ref,omitempty"`
}

func (s *Server) handleLogMeal(conn *websocket.Conn, data json.RawMessage) {
	var req logMealRequest
	if !s.decode(conn, data, &req) {
		return
	}

	var image []byte
	if req.Image != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			log.Printf("Error decoding image: %v", err)
			s.sendError(conn, "Invalid image format")
			return
		}
		image = decoded
	}

	meal, err := s.agents.Intake(context.Background(), req.MealType, req.Description, image)
	if err != nil {
		log.Printf("Intake failed for user %s: %v", req.UserID, err)
		s.reportError(conn, err)
		return
	}
	meal.ImageRef = req.ImageRef

	if err := s.ledger.LogMeal(req.UserID, *meal); err != nil {
		log.Printf("Error saving meal for user %s: %v", req.UserID, err)
		s.reportError(conn, err)
		return
	}
	log.Printf("User %s logged draft meal %s (%d items, %d kcal)", req.UserID, meal.ID, len(meal.Items), meal.Total.Kcal)

	s.sendMessage(conn, "meal_draft", meal)
}

type mealRequest struct {
	UserID string `json:"user_id" validate:"required"`
	MealID string `json:"meal_id" validate:"required"`
}

func (s *Server) handleConfirmMeal(conn *websocket.Conn, data json.RawMessage) {
	var req mealRequest
	if !s.decode(conn, data, &req) {
		return
	}

	// The confirmation is persisted before the slow context analysis so a
	// finish_day racing in right after cannot miss the confirmed meal, and
	// an analysis failure cannot roll it back.
	result, err := s.ledger.ConfirmMeal(req.UserID, req.MealID)
	if err != nil {
		s.reportError(conn, err)
		return
	}
	if result.AlreadyConfirmed {
		s.sendMessage(conn, "meal_confirmed", s.progressReply(req.UserID, result.Meal, ""))
		return
	}
	log.Printf("User %s confirmed meal %s (%d kcal)", req.UserID, req.MealID, result.Meal.Total.Kcal)

	comment := ""
	profile, err := s.store.LoadProfile(req.UserID)
	if err == nil {
		analysis, err := s.agents.AnalyzeContext(context.Background(), profile.Norms, result.PreviousSummary, result.Meal.Total)
		if err != nil {
			// The confirmation is already committed; analysis is best
			// effort.
			log.Printf("Context analysis failed for user %s meal %s: %v", req.UserID, req.MealID, err)
		} else {
			comment = analysis.Comment
			if _, err := s.ledger.ApplyContext(req.UserID, req.MealID, analysis.Comment, analysis.Summary); err != nil {
				log.Printf("Error applying context analysis for user %s: %v", req.UserID, err)
			}
		}
	}

	s.sendMessage(conn, "meal_confirmed", s.progressReply(req.UserID, result.Meal, comment))
}

// progressReply builds the standard post-mutation reply: the meal, the
// current day summary and the norms to report progress against.
func (s *Server) progressReply(userID string, meal models.Meal, comment string) map[string]any {
	reply := map[string]any{"meal": meal}
	if comment != "" {
		reply["comment"] = comment
	}
	if today, err := s.ledger.Today(userID); err == nil {
		reply["summary"] = today.Summary
	}
	if profile, err := s.store.LoadProfile(userID); err == nil {
		reply["norms"] = profile.Norms
	}
	return reply
}

type rescaleRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	MealID  string `json:"meal_id" validate:"required"`
	Percent int    `json:"percent" validate:"required,min=1,max=100"`
}

func (s *Server) handleRescaleMeal(conn *websocket.Conn, data json.RawMessage) {
	var req rescaleRequest
	if !s.decode(conn, data, &req) {
		return
	}

	meal, err := s.ledger.RescaleMeal(req.UserID, req.MealID, req.Percent)
	if err != nil {
		s.reportError(conn, err)
		return
	}
	log.Printf("User %s rescaled meal %s to %d%%", req.UserID, req.MealID, req.Percent)
	s.sendMessage(conn, "meal_updated", s.progressReply(req.UserID, *meal, ""))
}

type commentRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	MealID  string `json:"meal_id" validate:"required"`
	Comment string `json:"comment" validate:"required"`
}

func (s *Server) handleCommentMeal(conn *websocket.Conn, data json.RawMessage) {
	var req commentRequest
	if !s.decode(conn, data, &req) {
		return
	}

	today, err := s.ledger.Today(req.UserID)
	if err != nil {
		s.reportError(conn, err)
		return
	}
	meal := today.Meal(req.MealID)
	if meal == nil {
		s.sendError(conn, "Meal not found")
		return
	}

	result, err := s.agents.EditMeal(context.Background(), *meal, req.Comment)
	if err != nil {
		// The editor's output was unusable; the original meal stays as it
		// is rather than absorbing a partial update.
		log.Printf("Meal edit failed for user %s meal %s: %v", req.UserID, req.MealID, err)
		s.reportError(conn, err)
		return
	}

	updated, err := s.ledger.EditMeal(req.UserID, req.MealID, ledger.EditUpdate{
		Items:         result.Items,
		Total:         result.Total,
		Clarification: result.Clarification,
		Comment:       req.Comment,
	})
	if err != nil {
		s.reportError(conn, err)
		return
	}
	log.Printf("User %s edited meal %s via comment", req.UserID, req.MealID)
	s.sendMessage(conn, "meal_updated", s.progressReply(req.UserID, *updated, ""))
}

func (s *Server) handleDeleteMeal(conn *websocket.Conn, data json.RawMessage) {
	var req mealRequest
	if !s.decode(conn, data, &req) {
		return
	}

	if err := s.ledger.DeleteMeal(req.UserID, req.MealID); err != nil {
		s.reportError(conn, err)
		return
	}
	log.Printf("User %s deleted meal %s", req.UserID, req.MealID)

	reply := map[string]any{"meal_id": req.MealID}
	if today, err := s.ledger.Today(req.UserID); err == nil {
		reply["summary"] = today.Summary
	}
	s.sendMessage(conn, "meal_deleted", reply)
}

type userRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

func (s *Server) handleGetToday(conn *websocket.Conn, data json.RawMessage) {
	var req userRequest
	if !s.decode(conn, data, &req) {
		return
	}
	today, err := s.ledger.Today(req.UserID)
	if err != nil {
		s.reportError(conn, err)
		return
	}
	s.sendMessage(conn, "today", today)
}

func (s *Server) handleGetHistory(conn *websocket.Conn, data json.RawMessage) {
	var req userRequest
	if !s.decode(conn, data, &req) {
		return
	}
	history, err := s.ledger.History(req.UserID)
	if err != nil {
		s.reportError(conn, err)
		return
	}
	s.sendMessage(conn, "history", history)
}

func (s *Server) handleFinishDay(conn *websocket.Conn, data json.RawMessage) {
	var req userRequest
	if !s.decode(conn, data, &req) {
		return
	}

	entry, today, err := s.ledger.PrepareClose(req.UserID, time.Now())
	if err != nil {
		s.reportError(conn, err)
		return
	}

	if profile, err := s.store.LoadProfile(req.UserID); err == nil {
		comment, err := s.agents.AnalyzeDay(context.Background(), profile.Norms, today.Summary, entry.Meals)
		if err != nil {
			log.Printf("Day analysis failed for user %s: %v", req.UserID, err)
		} else {
			entry.Comment = comment
		}
	}

	s.pendingClose.Store(req.UserID, entry)
	s.sendMessage(conn, "day_summary", map[string]any{
		"entry":   entry,
		"summary": today.Summary,
	})
}

type confirmFinishRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	StartNew bool   `json:"start_new"`
}

func (s *Server) handleConfirmFinish(conn *websocket.Conn, data json.RawMessage) {
	var req confirmFinishRequest
	if !s.decode(conn, data, &req) {
		return
	}

	value, ok := s.pendingClose.LoadAndDelete(req.UserID)
	if !ok {
		s.sendError(conn, "No day summary pending, send finish_day first")
		return
	}
	if !req.StartNew {
		s.sendMessage(conn, "day_close_cancelled", nil)
		return
	}

	entry := value.(*models.HistoryEntry)
	result, err := s.ledger.CloseDay(req.UserID, entry)
	if err != nil {
		s.reportError(conn, err)
		return
	}
	log.Printf("User %s closed day %s (%d meals, %d days total)", req.UserID, entry.Date, entry.NumMeals, result.DaysClosed)

	s.sendMessage(conn, "day_closed", map[string]any{
		"days_closed": result.DaysClosed,
		"metrics_due": result.MetricsDue,
	})
}

type updateProfileRequest struct {
	UserID string      `json:"user_id" validate:"required"`
	Norms  norms.Input `json:"profile" validate:"required"`
}

func (s *Server) handleUpdateProfile(conn *websocket.Conn, data json.RawMessage) {
	var req updateProfileRequest
	if !s.decode(conn, data, &req) {
		return
	}

	computed, err := norms.Compute(req.Norms)
	if err != nil {
		s.sendError(conn, "Invalid profile data")
		return
	}

	profile, err := s.store.LoadProfile(req.UserID)
	if err != nil {
		s.reportError(conn, err)
		return
	}
	if profile.Personal == nil {
		profile.Personal = make(map[string]any)
	}
	profile.Personal["gender"] = req.Norms.Gender
	profile.Personal["age"] = req.Norms.Age
	profile.Personal["height_cm"] = req.Norms.HeightCM
	profile.Personal["weight_kg"] = req.Norms.WeightKG
	profile.Personal["activity_level"] = req.Norms.ActivityLevel
	if profile.Goals == nil {
		profile.Goals = make(map[string]any)
	}
	profile.Goals["goal_type"] = req.Norms.GoalType
	profile.Norms = computed

	if err := s.store.SaveProfile(req.UserID, profile); err != nil {
		s.reportError(conn, err)
		return
	}
	log.Printf("User %s profile updated, target %d kcal", req.UserID, computed.TargetKcal)
	s.sendMessage(conn, "profile_updated", computed)
}

func (s *Server) sendMessage(conn *websocket.Conn, messageType string, data any) {
	msg := map[string]any{
		"type": messageType,
		"data": data,
	}

	if s.debug {
		log.Printf("Sending message to client - Type: %s", messageType)
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Println("Error sending message:", err)
	}
}

func (s *Server) sendError(conn *websocket.Conn, message string) {
	msg := map[string]any{
		"type":    "error",
		"message": message,
	}

	if err := conn.WriteJSON(msg); err != nil {
		log.Println("Error sending error message:", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
