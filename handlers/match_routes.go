package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"skate-match-system/engine"
	"skate-match-system/middleware"
	"skate-match-system/services"
	"skate-match-system/utils"
)

// UserChecker reports whether a player identity exists.
type UserChecker interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

type MatchHandler struct {
	Matches       *services.MatchService
	Stats         *services.StatsService
	Publisher     *services.Publisher
	Identity      UserChecker
	Videos        utils.VideoStore
	MaxVideoBytes int64
}

const defaultListLimit = 50

func SetupMatchRoutes(app *fiber.App, h *MatchHandler) {
	// 🔐 every match route acts on behalf of a player
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/matches", h.CreateMatch)
	secured.Get("/matches", h.ListMatches)
	secured.Get("/matches/:id", h.GetMatch)
	secured.Post("/matches/:id/accept", h.AcceptMatch)
	secured.Post("/matches/:id/decline", h.DeclineMatch)
	secured.Get("/matches/:id/rounds", h.ListRounds)
	secured.Post("/matches/:id/rounds", h.OpenRound)
	secured.Post("/matches/:id/rounds/:roundId/reply", h.ReplyToRound)
	secured.Get("/matches/:id/events", h.ListEvents)
	secured.Get("/user/stats", h.GetStats)
}

type createMatchRequest struct {
	OpponentID string `json:"opponent_id" form:"opponent_id"`
}

func (h *MatchHandler) CreateMatch(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	var req createMatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	opponent := strings.TrimSpace(req.OpponentID)
	if opponent == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "opponent_id is required"})
	}

	if h.Identity != nil && opponent != userID {
		ok, err := h.Identity.UserExists(c.UserContext(), opponent)
		if err != nil {
			log.Printf("[MATCH] identity lookup for %s failed: %v", opponent, err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "identity service unavailable"})
		}
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "opponent not found"})
		}
	}

	res, err := h.Matches.CreateMatch(c.UserContext(), userID, opponent)
	if err != nil {
		return writeError(c, err)
	}
	log.Printf("[MATCH] %s challenged %s (match %s)", userID, opponent, res.Match.ID)
	return h.committed(c, fiber.StatusCreated, res)
}

func (h *MatchHandler) ListMatches(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultListLimit)
	if limit <= 0 || limit > 200 {
		limit = defaultListLimit
	}
	matches, err := h.Matches.ListMatchesForPlayer(c.UserContext(), middleware.UserID(c), limit)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]matchJSON, 0, len(matches))
	for _, m := range matches {
		out = append(out, toMatchJSON(m, h.Matches.Word()))
	}
	return c.JSON(fiber.Map{"matches": out})
}

func (h *MatchHandler) GetMatch(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	view, err := h.Matches.GetMatch(c.UserContext(), c.Params("id"), userID)
	if err != nil {
		return writeError(c, err)
	}
	if !view.Match.HasPlayer(userID) {
		return writeError(c, fmt.Errorf("%w: not a player of this match", engine.ErrUnauthorized))
	}
	return c.JSON(toViewJSON(view, h.Matches.Word()))
}

func (h *MatchHandler) AcceptMatch(c *fiber.Ctx) error {
	res, err := h.Matches.AcceptMatch(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	log.Printf("[MATCH] %s accepted match %s", middleware.UserID(c), res.Match.ID)
	return h.committed(c, fiber.StatusOK, res)
}

func (h *MatchHandler) DeclineMatch(c *fiber.Ctx) error {
	res, err := h.Matches.DeclineMatch(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	log.Printf("[MATCH] %s declined match %s", middleware.UserID(c), res.Match.ID)
	return h.committed(c, fiber.StatusOK, res)
}

func (h *MatchHandler) ListRounds(c *fiber.Ctx) error {
	if err := h.requirePlayer(c); err != nil {
		return writeError(c, err)
	}
	rounds, err := h.Matches.ListRounds(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	out := make([]roundJSON, 0, len(rounds))
	for _, r := range rounds {
		out = append(out, toRoundJSON(r))
	}
	return c.JSON(fiber.Map{"rounds": out})
}

func (h *MatchHandler) ListEvents(c *fiber.Ctx) error {
	if err := h.requirePlayer(c); err != nil {
		return writeError(c, err)
	}
	events, err := h.Matches.ListEvents(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"events": events})
}

type openRoundRequest struct {
	VideoURL  string `json:"video_url" form:"video_url"`
	TrickName string `json:"trick_name" form:"trick_name"`
}

func (h *MatchHandler) OpenRound(c *fiber.Ctx) error {
	matchID := c.Params("id")
	var req openRoundRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	videoURL, err := h.videoURL(c, matchID, "set", req.VideoURL)
	if err != nil {
		return writeError(c, err)
	}

	res, err := h.Matches.OpenRound(c.UserContext(), matchID, middleware.UserID(c), videoURL, req.TrickName)
	if err != nil {
		return writeError(c, err)
	}
	log.Printf("[MATCH] %s set round %d in match %s", middleware.UserID(c), res.Round.Index, matchID)
	return h.committed(c, fiber.StatusCreated, res)
}

type replyRequest struct {
	VideoURL string `json:"video_url" form:"video_url"`
	DidMake  *bool  `json:"did_make" form:"did_make"`
}

func (h *MatchHandler) ReplyToRound(c *fiber.Ctx) error {
	matchID := c.Params("id")
	var req replyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.DidMake == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "did_make is required"})
	}
	videoURL, err := h.videoURL(c, matchID, "reply", req.VideoURL)
	if err != nil {
		return writeError(c, err)
	}

	res, err := h.Matches.CloseRound(c.UserContext(), matchID, c.Params("roundId"), middleware.UserID(c), videoURL, *req.DidMake)
	if err != nil {
		return writeError(c, err)
	}
	log.Printf("[MATCH] %s replied to round %s in match %s (make=%t)", middleware.UserID(c), c.Params("roundId"), matchID, *req.DidMake)
	return h.committed(c, fiber.StatusOK, res)
}

func (h *MatchHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.Stats.PlayerStats(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(stats)
}

// committed publishes the side effects of a committed operation and
// writes its response.
func (h *MatchHandler) committed(c *fiber.Ctx, status int, res services.Result) error {
	if h.Publisher != nil {
		h.Publisher.Publish(c.UserContext(), res)
	}
	body := fiber.Map{"match": toMatchJSON(res.Match, h.Matches.Word())}
	if res.Round != nil {
		body["round"] = toRoundJSON(*res.Round)
	}
	return c.Status(status).JSON(body)
}

func (h *MatchHandler) requirePlayer(c *fiber.Ctx) error {
	view, err := h.Matches.GetMatch(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	if !view.Match.HasPlayer(middleware.UserID(c)) {
		return fmt.Errorf("%w: not a player of this match", engine.ErrUnauthorized)
	}
	return nil
}

// videoURL returns the uploaded video's URL when a "video" file is
// attached, otherwise the given URL.
func (h *MatchHandler) videoURL(c *fiber.Ctx, matchID, kind, given string) (string, error) {
	fh, err := c.FormFile("video")
	if err != nil {
		return strings.TrimSpace(given), nil
	}
	if h.Videos == nil {
		return "", fmt.Errorf("%w: video uploads are not enabled", services.ErrInvalidInput)
	}
	if err := utils.CheckVideo(fh, h.MaxVideoBytes); err != nil {
		return "", fmt.Errorf("%w: %v", services.ErrInvalidInput, err)
	}
	url, err := h.Videos.Upload(c.UserContext(), fh, utils.VideoKey(matchID, kind, fh.Filename))
	if err != nil {
		log.Printf("[MATCH] video upload for match %s failed: %v", matchID, err)
		return "", errVideoUpload
	}
	return url, nil
}

var errVideoUpload = errors.New("video upload failed")

func writeError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		status = fiber.StatusBadRequest
	case errors.Is(err, engine.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, engine.ErrUnauthorized):
		status = fiber.StatusForbidden
	case errors.Is(err, engine.ErrIllegalTransition):
		status = fiber.StatusConflict
	case errors.Is(err, engine.ErrContention):
		c.Set(fiber.HeaderRetryAfter, "1")
		status = fiber.StatusServiceUnavailable
	case errors.Is(err, errVideoUpload):
		status = fiber.StatusBadGateway
	default:
		log.Printf("[MATCH] %s %s failed: %v", c.Method(), c.Path(), err)
		return c.Status(status).JSON(fiber.Map{"error": "internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
