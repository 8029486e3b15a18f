package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	"github.com/noah-isme/sma-substitution-api/internal/middleware"
	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
	"github.com/noah-isme/sma-substitution-api/pkg/response"
)

type recommendationProvider interface {
	GetRecommendations(ctx context.Context, query dto.RecommendationQuery) (*dto.RecommendationResponse, error)
}

type offerWorkflow interface {
	CreateOffers(ctx context.Context, req dto.CreateOffersRequest, adminID string) ([]models.SubstitutionOffer, error)
	RespondToOffer(ctx context.Context, offerID, teacherID string, req dto.RespondOfferRequest) (*models.SubstitutionOffer, error)
	CancelOffer(ctx context.Context, offerID, adminID string) error
	CompleteOffer(ctx context.Context, offerID, adminID string) (*models.SubstitutionOffer, error)
	GetOffer(ctx context.Context, offerID string, viewer *models.JWTClaims) (*models.SubstitutionOffer, error)
	ListOffers(ctx context.Context, query dto.OfferQuery) ([]models.SubstitutionOffer, *models.Pagination, error)
	ListLeaveOffers(ctx context.Context, leaveID string) (*models.Leave, []models.SubstitutionOffer, error)
}

type rosterProvider interface {
	Entries(ctx context.Context, query dto.RosterQuery) ([]models.RosterEntry, time.Time, error)
	Export(ctx context.Context, query dto.RosterQuery) (*dto.RosterExport, error)
}

// SubstitutionHandler exposes the substitute recommendation and offer endpoints.
type SubstitutionHandler struct {
	recommender recommendationProvider
	offers      offerWorkflow
	roster      rosterProvider
}

// NewSubstitutionHandler constructs the handler.
func NewSubstitutionHandler(recommender recommendationProvider, offers offerWorkflow, roster rosterProvider) *SubstitutionHandler {
	return &SubstitutionHandler{recommender: recommender, offers: offers, roster: roster}
}

// Recommendations godoc
// @Summary Rank substitute candidates for a vacated period
// @Tags Substitutions
// @Produce json
// @Param leaveId query string false "Leave ID"
// @Param subject query string true "Subject of the vacated period"
// @Param day query string true "Weekday name"
// @Param period query int true "Period number"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param excludeTeacherId query string false "Absent teacher to exclude"
// @Param limit query int false "Maximum candidates (default 5)"
// @Param includeUnavailable query bool false "Keep candidates with zero availability"
// @Param candidateSubject query string false "Only consider teachers of this subject"
// @Success 200 {object} response.Envelope
// @Router /substitutions/recommendations [get]
func (h *SubstitutionHandler) Recommendations(c *gin.Context) {
	var query dto.RecommendationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid recommendation query"))
		return
	}
	result, err := h.recommender.GetRecommendations(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, result.Cached)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// CreateOffers godoc
// @Summary Offer a vacated period to candidate teachers
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param payload body dto.CreateOffersRequest true "Vacancy and candidates"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /substitutions/offers [post]
func (h *SubstitutionHandler) CreateOffers(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateOffersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid offer payload"))
		return
	}
	offers, err := h.offers.CreateOffers(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, offers)
}

// ListOffers godoc
// @Summary List substitution offers
// @Tags Substitutions
// @Produce json
// @Param leaveId query string false "Leave ID"
// @Param teacherId query string false "Offered teacher ID"
// @Param status query string false "Comma separated statuses"
// @Param date query string false "Vacancy date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /substitutions/offers [get]
func (h *SubstitutionHandler) ListOffers(c *gin.Context) {
	query := offerQueryFromRequest(c)
	query.LeaveID = c.Query("leaveId")
	query.TeacherID = c.Query("teacherId")
	h.listOffers(c, query)
}

// MyOffers godoc
// @Summary List offers sent to the current teacher
// @Tags Substitutions
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Success 200 {object} response.Envelope
// @Router /substitutions/offers/mine [get]
func (h *SubstitutionHandler) MyOffers(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := offerQueryFromRequest(c)
	query.TeacherID = claims.ActorTeacherID()
	h.listOffers(c, query)
}

// TeacherOffers godoc
// @Summary List offers sent to a teacher
// @Tags Substitutions
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/substitution-offers [get]
func (h *SubstitutionHandler) TeacherOffers(c *gin.Context) {
	query := offerQueryFromRequest(c)
	query.TeacherID = c.Param("id")
	h.listOffers(c, query)
}

func (h *SubstitutionHandler) listOffers(c *gin.Context, query dto.OfferQuery) {
	offers, pagination, err := h.offers.ListOffers(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offers, pagination)
}

// GetOffer godoc
// @Summary Get a substitution offer
// @Tags Substitutions
// @Produce json
// @Param id path string true "Offer ID"
// @Success 200 {object} response.Envelope
// @Router /substitutions/offers/{id} [get]
func (h *SubstitutionHandler) GetOffer(c *gin.Context) {
	offer, err := h.offers.GetOffer(c.Request.Context(), c.Param("id"), middleware.CurrentClaims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offer, nil)
}

// Respond godoc
// @Summary Accept or reject an offer
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param id path string true "Offer ID"
// @Param payload body dto.RespondOfferRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /substitutions/offers/{id}/respond [post]
func (h *SubstitutionHandler) Respond(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RespondOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid response payload"))
		return
	}
	req.Decision = models.OfferDecision(strings.ToLower(strings.TrimSpace(string(req.Decision))))
	offer, err := h.offers.RespondToOffer(c.Request.Context(), c.Param("id"), claims.ActorTeacherID(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offer, nil)
}

// Complete godoc
// @Summary Mark an accepted substitution as delivered
// @Tags Substitutions
// @Produce json
// @Param id path string true "Offer ID"
// @Success 200 {object} response.Envelope
// @Router /substitutions/offers/{id}/complete [post]
func (h *SubstitutionHandler) Complete(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	offer, err := h.offers.CompleteOffer(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offer, nil)
}

// Cancel godoc
// @Summary Withdraw an offer
// @Tags Substitutions
// @Param id path string true "Offer ID"
// @Success 204
// @Router /substitutions/offers/{id} [delete]
func (h *SubstitutionHandler) Cancel(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.offers.CancelOffer(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Roster godoc
// @Summary Daily substitution roster
// @Tags Substitutions
// @Produce json,text/csv,application/pdf
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param format query string false "json, csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /substitutions/roster [get]
func (h *SubstitutionHandler) Roster(c *gin.Context) {
	query := dto.RosterQuery{Date: c.Query("date"), Format: strings.ToLower(c.DefaultQuery("format", "json"))}
	if query.Format == "json" {
		entries, date, err := h.roster.Entries(c.Request.Context(), query)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, entries, nil, middleware.ExtractMeta(c), map[string]any{
			"date": date.Format("2006-01-02"),
			"day":  models.DayOf(date),
		})
		return
	}
	result, err := h.roster.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Body)
}

// LeaveOffers godoc
// @Summary List every offer issued for a leave
// @Tags Leaves
// @Produce json
// @Param id path string true "Leave ID"
// @Success 200 {object} response.Envelope
// @Router /leaves/{id}/offers [get]
func (h *SubstitutionHandler) LeaveOffers(c *gin.Context) {
	leave, offers, err := h.offers.ListLeaveOffers(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"leave": leave, "offers": offers}, nil)
}

func offerQueryFromRequest(c *gin.Context) dto.OfferQuery {
	query := dto.OfferQuery{Date: c.Query("date")}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		query.PageSize = size
	}
	for _, raw := range c.QueryArray("status") {
		for _, status := range strings.Split(raw, ",") {
			if status = strings.TrimSpace(status); status != "" {
				query.Status = append(query.Status, models.OfferStatus(status))
			}
		}
	}
	return query
}
