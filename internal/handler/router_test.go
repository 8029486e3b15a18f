package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	"github.com/noah-isme/sma-substitution-api/internal/models"
	"github.com/noah-isme/sma-substitution-api/internal/service"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

type tokenTable map[string]*models.JWTClaims

func (t tokenTable) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := t[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

func buildTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	substitution := NewSubstitutionHandler(
		&recommenderMock{resp: &dto.RecommendationResponse{}},
		&offerWorkflowMock{respondResp: &models.SubstitutionOffer{ID: "o1"}},
		&rosterMock{},
	)
	RegisterRoutes(r, RouterDeps{
		APIPrefix:   "/api/v1",
		MetricsPath: "/metrics",
		Tokens: tokenTable{
			"admin":   adminClaims,
			"teacher": teacherClaims,
		},
		Substitution: substitution,
		Metrics:      NewMetricsHandler(service.NewMetricsService(), nil),
	})
	return r
}

func TestRoutesIntegration(t *testing.T) {
	router := buildTestRouter()

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		status int
	}{
		{"health", http.MethodGet, "/health", "", "", http.StatusOK},
		{"ready without db", http.MethodGet, "/ready", "", "", http.StatusOK},
		{"prometheus", http.MethodGet, "/metrics", "", "", http.StatusOK},
		{"unauthenticated", http.MethodGet, "/api/v1/substitutions/offers", "", "", http.StatusUnauthorized},
		{"teacher cannot rank", http.MethodGet, "/api/v1/substitutions/recommendations", "teacher", "", http.StatusForbidden},
		{"admin ranks", http.MethodGet, "/api/v1/substitutions/recommendations", "admin", "", http.StatusOK},
		{"teacher inbox", http.MethodGet, "/api/v1/substitutions/offers/mine", "teacher", "", http.StatusOK},
		{"teacher responds", http.MethodPost, "/api/v1/substitutions/offers/o1/respond", "teacher", `{"decision":"accept"}`, http.StatusOK},
		{"admin cannot respond", http.MethodPost, "/api/v1/substitutions/offers/o1/respond", "admin", `{"decision":"accept"}`, http.StatusForbidden},
		{"teacher cannot cancel", http.MethodDelete, "/api/v1/substitutions/offers/o1", "teacher", "", http.StatusForbidden},
		{"admin cancels", http.MethodDelete, "/api/v1/substitutions/offers/o1", "admin", "", http.StatusNoContent},
		{"teacher own history", http.MethodGet, "/api/v1/teachers/t1/substitution-offers", "teacher", "", http.StatusOK},
		{"teacher other history", http.MethodGet, "/api/v1/teachers/t2/substitution-offers", "teacher", "", http.StatusForbidden},
		{"system metrics", http.MethodGet, "/api/v1/system/metrics", "admin", "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, bytes.NewBufferString(tc.body))
			if tc.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			require.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}
