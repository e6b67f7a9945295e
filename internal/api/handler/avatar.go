package handler

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/iranverse/avatar-engine/internal/avatar"
	"github.com/iranverse/avatar-engine/internal/domain"
)

// AvatarStore reads persisted avatar records.
type AvatarStore interface {
	GetByRPMID(ctx context.Context, rpmID string) (*domain.AvatarState, error)
	GetLatestURL(ctx context.Context, userID string) (string, error)
}

// AvatarCache is the read side of the resolved-state cache.
type AvatarCache interface {
	Get(ctx context.Context, key string) (*domain.AvatarState, error)
	Set(ctx context.Context, state *domain.AvatarState) error
}

// AvatarHandler serves read access to avatar records: lookup,
// context-aware asset resolution and the relaunch resume URL.
type AvatarHandler struct {
	store  AvatarStore
	cache  AvatarCache
	logger *slog.Logger
}

func NewAvatarHandler(store AvatarStore, cache AvatarCache, logger *slog.Logger) *AvatarHandler {
	return &AvatarHandler{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// AvatarResponse wraps a record with its completeness score.
type AvatarResponse struct {
	Avatar       *domain.AvatarState `json:"avatar"`
	QualityScore int                 `json:"quality_score"`
}

// ResolveResponse is a resolved asset URL for one usage context.
type ResolveResponse struct {
	RPMID   string `json:"rpm_id"`
	Context string `json:"context"`
	URL     string `json:"url"`
	Version int    `json:"version"`
}

// ResumeURLResponse is the last resolved avatar URL for a user.
type ResumeURLResponse struct {
	UserID string `json:"user_id"`
	URL    string `json:"url"`
}

// Get GET /v1/avatars/:rpmId - fetch an avatar record
// @Summary Get avatar record
// @Tags avatars
// @Produce json
// @Success 200 {object} AvatarResponse
// @Failure 404 {object} domain.AppError
// @Router /v1/avatars/{rpmId} [get]
func (h *AvatarHandler) Get(c *fiber.Ctx) error {
	rpmID := c.Params("rpmId")
	if rpmID == "" {
		return domain.ErrBadRequest
	}

	state, err := h.lookup(c.UserContext(), rpmID)
	if err != nil {
		return err
	}

	return c.JSON(AvatarResponse{
		Avatar:       state,
		QualityScore: avatar.Score(state),
	})
}

// Resolve GET /v1/avatars/:rpmId/resolve - resolve the best asset URL
// @Summary Resolve avatar asset URL for a usage context
// @Tags avatars
// @Produce json
// @Param context query string false "Usage context: thumbnail, display, 3d, ar, vr"
// @Param versioned query bool false "Append version cache-busting parameters"
// @Success 200 {object} ResolveResponse
// @Failure 404 {object} domain.AppError
// @Router /v1/avatars/{rpmId}/resolve [get]
func (h *AvatarHandler) Resolve(c *fiber.Ctx) error {
	rpmID := c.Params("rpmId")
	if rpmID == "" {
		return domain.ErrBadRequest
	}

	state, err := h.lookup(c.UserContext(), rpmID)
	if err != nil {
		return err
	}

	usage := avatar.ParseContext(c.Query("context"))
	url := avatar.Resolve(state, usage)

	if versioned, _ := strconv.ParseBool(c.Query("versioned")); versioned && url != "" {
		url = avatar.VersionedURL(url, state.Version)
	}

	return c.JSON(ResolveResponse{
		RPMID:   state.RPMID,
		Context: string(usage),
		URL:     url,
		Version: state.Version,
	})
}

// ResumeURL GET /v1/users/:userId/avatar-url - relaunch resume path
// @Summary Get the latest resolved avatar URL for a user
// @Tags avatars
// @Produce json
// @Success 200 {object} ResumeURLResponse
// @Failure 404 {object} domain.AppError
// @Router /v1/users/{userId}/avatar-url [get]
func (h *AvatarHandler) ResumeURL(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return domain.ErrBadRequest
	}

	url, err := h.store.GetLatestURL(c.UserContext(), userID)
	if err != nil {
		return err
	}

	return c.JSON(ResumeURLResponse{
		UserID: userID,
		URL:    url,
	})
}

// lookup serves reads through the latest-version cache pointer; only a
// miss or cache failure touches the repository, which then warms the
// cache on the way out.
func (h *AvatarHandler) lookup(ctx context.Context, rpmID string) (*domain.AvatarState, error) {
	if h.cache != nil {
		if cached, err := h.cache.Get(ctx, domain.LatestCacheKey(rpmID)); err == nil && cached != nil {
			return cached, nil
		}
	}

	state, err := h.store.GetByRPMID(ctx, rpmID)
	if err != nil {
		if errors.Is(err, domain.ErrAvatarNotFound) {
			return nil, domain.ErrAvatarNotFound
		}
		return nil, domain.ErrInternal.WithError(err)
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, state); err != nil {
			h.logger.Warn("failed to warm avatar cache", "rpm_id", rpmID, "error", err)
		}
	}
	return state, nil
}
