package strategy

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/moodchat/backend/internal/analysis/strategy"
	"github.com/zhouzirui/moodchat/backend/pkg/utils"
)

// Handler exposes the reply strategies the selector can choose from.
type Handler struct{}

// New 创建策略处理器
func New() *Handler {
	return &Handler{}
}

// RegisterRoutes 注册策略相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/strategies", h.handleListStrategies)
}

type strategyView struct {
	ID          strategy.Strategy `json:"id"`
	Description string            `json:"description"`
	Prompt      string            `json:"prompt"`
}

func (h *Handler) handleListStrategies(w http.ResponseWriter, _ *http.Request) {
	all := strategy.All()
	views := make([]strategyView, 0, len(all))
	for _, s := range all {
		views = append(views, strategyView{
			ID:          s,
			Description: s.Describe(),
			Prompt:      s.Prompt(),
		})
	}
	utils.RespondJSON(w, http.StatusOK, views)
}
