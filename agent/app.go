// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"folderlink/platform/connectors/base"
	"folderlink/platform/connectors/config"
	"folderlink/platform/connectors/ledger"
	"folderlink/platform/provisioner"
	"folderlink/platform/shared/logger"
)

// OrphanLedger records placeholders left without a record link.
type OrphanLedger interface {
	Record(ctx context.Context, o ledger.Orphan) error
	List(ctx context.Context, limit int) ([]ledger.Orphan, error)
	Resolve(ctx context.Context, placeholderURL string) (bool, error)
}

// AppConfig holds the parts an App is assembled from.
type AppConfig struct {
	Plugins     *PluginRegistry
	RecordStore *RecordStore

	// Ledger is optional; without it orphans are only logged.
	Ledger OrphanLedger

	// Auth is optional; nil accepts unauthenticated deliveries.
	Auth *WebhookAuth

	Logger *logger.Logger
}

// App serves plugin executions for the host.
type App struct {
	plugins *PluginRegistry
	store   *RecordStore
	ledger  OrphanLedger
	auth    *WebhookAuth
	logger  *logger.Logger
}

// ExecuteResponse is the body returned for a plugin execution.
type ExecuteResponse struct {
	Status    string `json:"status"`
	RecordID  string `json:"record_id,omitempty"`
	FolderURL string `json:"folder_url,omitempty"`
	JSON      string `json:"json,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Execution outcomes, also used as metric labels.
const (
	outcomeLinked   = "linked"
	outcomeSkipped  = "skipped"
	outcomeRejected = "rejected"
	outcomeQueried  = "queried"
)

// NewApp creates an App. Plugins and RecordStore are required.
func NewApp(cfg AppConfig) (*App, error) {
	if cfg.Plugins == nil {
		return nil, errors.New("plugin registry is required")
	}
	if cfg.RecordStore == nil || cfg.RecordStore.Writer == nil {
		return nil, errors.New("record store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.New("agent")
	}
	return &App{
		plugins: cfg.Plugins,
		store:   cfg.RecordStore,
		ledger:  cfg.Ledger,
		auth:    cfg.Auth,
		logger:  cfg.Logger,
	}, nil
}

// Mount registers the App's routes on r.
func (a *App) Mount(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(a.auth.Middleware)
	api.HandleFunc("/plugins", a.listPluginsHandler).Methods("GET")
	api.HandleFunc("/plugins/{name}/execute", a.executeHandler).Methods("POST")
	api.HandleFunc("/orphans", a.listOrphansHandler).Methods("GET")
	api.HandleFunc("/orphans", a.resolveOrphanHandler).Methods("DELETE")
}

// Router returns a router with the App's routes and /health.
func (a *App) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", a.healthHandler).Methods("GET")
	a.Mount(r)
	return r
}

func (a *App) listPluginsHandler(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]interface{}{"plugins": a.plugins.Names()})
}

func (a *App) executeHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	plugin, ok := a.plugins.Get(name)
	if !ok {
		sendErrorResponse(w, "unknown plugin: "+name, http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxExecutionContextBytes+1))
	if err != nil {
		sendErrorResponse(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if len(body) > maxExecutionContextBytes {
		sendErrorResponse(w, "execution context too large", http.StatusRequestEntityTooLarge)
		return
	}
	ec, err := ParseExecutionContext(body)
	if err != nil {
		sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	correlationID := ec.CorrelationID
	if correlationID == "" {
		correlationID = r.Header.Get("X-Correlation-ID")
	}
	host := provisioner.Host{
		EventInfo:  ec,
		Tracer:     &logger.TraceSink{Logger: a.logger, Registration: plugin.Name, CorrelationID: correlationID},
		DataWriter: a.store.Writer,
	}

	switch plugin.Mode {
	case config.ModeProvision:
		a.executeProvision(w, r, plugin, ec, host)
	case config.ModeReject:
		err := plugin.reject.Run(host)
		promProvisioningTotal.WithLabelValues(plugin.Name, outcomeRejected).Inc()
		sendJSON(w, http.StatusForbidden, ExecuteResponse{Status: outcomeRejected, Error: err.Error()})
	case config.ModeQueryJSON:
		a.executeQuery(w, r, plugin, ec)
	default:
		sendErrorResponse(w, "plugin has no executable mode", http.StatusInternalServerError)
	}
}

func (a *App) executeProvision(w http.ResponseWriter, r *http.Request, plugin *Plugin, ec *ExecutionContext, host provisioner.Host) {
	if plugin.Entity != "" && !strings.EqualFold(plugin.Entity, ec.PrimaryEntityName) {
		promProvisioningTotal.WithLabelValues(plugin.Name, outcomeSkipped).Inc()
		sendJSON(w, http.StatusOK, ExecuteResponse{Status: outcomeSkipped})
		return
	}

	result, err := plugin.provisioner.Run(r.Context(), host)
	if result != nil && result.PlaceholderDuration > 0 {
		promPlaceholderDuration.WithLabelValues(plugin.Name).Observe(float64(result.PlaceholderDuration.Milliseconds()))
	}

	if err != nil {
		kind := base.KindOf(err)
		promProvisioningTotal.WithLabelValues(plugin.Name, strings.ToLower(string(kind))).Inc()
		if kind == base.KindOrphanedPlaceholder {
			a.recordOrphan(r.Context(), plugin, ec, result, err)
		}
		sendJSON(w, statusForKind(kind), ExecuteResponse{
			Status: string(provisioner.StateFailed),
			Kind:   string(kind),
			Error:  err.Error(),
		})
		return
	}

	if result.Skipped() {
		promProvisioningTotal.WithLabelValues(plugin.Name, outcomeSkipped).Inc()
		sendJSON(w, http.StatusOK, ExecuteResponse{Status: outcomeSkipped})
		return
	}

	promProvisioningTotal.WithLabelValues(plugin.Name, outcomeLinked).Inc()
	sendJSON(w, http.StatusOK, ExecuteResponse{
		Status:    outcomeLinked,
		RecordID:  result.Folder.RecordID.String(),
		FolderURL: result.Folder.FolderURL,
	})
}

func (a *App) executeQuery(w http.ResponseWriter, r *http.Request, plugin *Plugin, ec *ExecutionContext) {
	if a.store.Querier == nil {
		sendErrorResponse(w, "record store "+a.store.Type+" does not support queries", http.StatusNotImplemented)
		return
	}

	out, err := provisioner.QueryToJSON(r.Context(), a.store.Querier, ec.InputParameters)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, provisioner.ErrInvalidFetchXML) {
			status = http.StatusBadRequest
		}
		a.logger.Error(plugin.Name, ec.CorrelationID, "Query failed", map[string]interface{}{"error": err})
		sendJSON(w, status, ExecuteResponse{Status: string(provisioner.StateFailed), Error: err.Error()})
		return
	}

	promProvisioningTotal.WithLabelValues(plugin.Name, outcomeQueried).Inc()
	sendJSON(w, http.StatusOK, ExecuteResponse{Status: outcomeQueried, JSON: out})
}

// recordOrphan writes an orphaned placeholder to the ledger. A ledger
// failure is logged and does not change the response.
func (a *App) recordOrphan(ctx context.Context, plugin *Plugin, ec *ExecutionContext, result *provisioner.Result, err error) {
	promOrphansTotal.WithLabelValues(plugin.Name).Inc()
	if a.ledger == nil || result == nil || result.Folder == nil {
		a.logger.Warn(plugin.Name, ec.CorrelationID, "Orphaned placeholder not recorded: ledger disabled", nil)
		return
	}

	var pe *base.ProvisionError
	reason := err.Error()
	if errors.As(err, &pe) && pe.Cause != nil {
		reason = pe.Cause.Error()
	}

	orphan := ledger.Orphan{
		Registration:   plugin.Name,
		CorrelationID:  ec.CorrelationID,
		Entity:         ec.PrimaryEntityName,
		RecordID:       result.Folder.RecordID.String(),
		BlobPath:       result.Folder.ContainerName + "/" + result.Folder.BlobPath,
		PlaceholderURL: result.Folder.PlaceholderURL(),
		Reason:         a.logger.Redact(reason),
		RecordedAt:     time.Now().UTC(),
	}
	// The host may already have dropped the request.
	if lerr := a.ledger.Record(context.WithoutCancel(ctx), orphan); lerr != nil {
		a.logger.Error(plugin.Name, ec.CorrelationID, "Failed to record orphaned placeholder", map[string]interface{}{
			"error":     lerr,
			"blob_path": orphan.BlobPath,
		})
	}
}

func (a *App) listOrphansHandler(w http.ResponseWriter, r *http.Request) {
	if a.ledger == nil {
		sendErrorResponse(w, "orphan ledger is disabled", http.StatusNotFound)
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			sendErrorResponse(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	orphans, err := a.ledger.List(r.Context(), limit)
	if err != nil {
		sendErrorResponse(w, "failed to list orphans", http.StatusInternalServerError)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"orphans": orphans, "count": len(orphans)})
}

func (a *App) resolveOrphanHandler(w http.ResponseWriter, r *http.Request) {
	if a.ledger == nil {
		sendErrorResponse(w, "orphan ledger is disabled", http.StatusNotFound)
		return
	}
	placeholderURL := r.URL.Query().Get("url")
	if placeholderURL == "" {
		sendErrorResponse(w, "url query parameter is required", http.StatusBadRequest)
		return
	}

	found, err := a.ledger.Resolve(r.Context(), placeholderURL)
	if err != nil {
		sendErrorResponse(w, "failed to resolve orphan", http.StatusInternalServerError)
		return
	}
	if !found {
		sendErrorResponse(w, "orphan not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	components := map[string]*base.HealthStatus{}

	checks := []base.HealthChecker{}
	if a.store.Health != nil {
		checks = append(checks, a.store.Health)
	}
	if hc, ok := a.ledger.(base.HealthChecker); ok {
		checks = append(checks, hc)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	for _, hc := range checks {
		hs := base.Check(ctx, hc)
		if !hs.Healthy {
			status = "degraded"
		}
		components[hc.Name()] = hs
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	sendJSON(w, code, map[string]interface{}{
		"status":       status,
		"service":      "folderlink-agent",
		"record_store": a.store.Type,
		"components":   components,
		"timestamp":    time.Now().UTC(),
	})
}

// statusForKind maps a failure kind to the HTTP status returned to the host.
func statusForKind(kind base.ErrorKind) int {
	switch kind {
	case base.KindMissingIdentifier, base.KindConfig:
		return http.StatusBadRequest
	case base.KindRemoteCreateFailed, base.KindLinkUpdateFailed, base.KindOrphanedPlaceholder:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func sendJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	sendJSON(w, statusCode, ExecuteResponse{Status: "error", Error: message})
}
