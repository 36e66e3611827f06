package server

import (
	"encoding/json"
	"net/http"
)

// HandleAdminConfig 返回当前生效的配置（只读，常量不支持热更新）
// GET /admin/config
func (w *World) HandleAdminConfig(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(rw, w.cfg)
}

// HandleChannels 输出各频道人数与容量
// GET /admin/channels
func (w *World) HandleChannels(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(rw, w.Status())
}

// HandleMetrics 输出世界运行指标
// GET /metrics
func (w *World) HandleMetrics(rw http.ResponseWriter, r *http.Request) {
	st := w.Status()
	payload := map[string]any{
		"sessions": st.Sessions,
		"metrics":  w.metrics.Snapshot(),
	}
	writeJSON(rw, payload)
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}
