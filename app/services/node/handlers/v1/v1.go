// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/blastnetwork/blast/app/services/node/handlers/v1/private"
	"github.com/blastnetwork/blast/app/services/node/handlers/v1/public"
	"github.com/blastnetwork/blast/foundation/blockchain/state"
	"github.com/blastnetwork/blast/foundation/events"
	"github.com/blastnetwork/blast/foundation/nameservice"
	"github.com/blastnetwork/blast/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
		WS:    websocket.Upgrader{},
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/genesis/list", pbl.Genesis)
	app.Handle(http.MethodGet, version, "/accounts/list", pbl.Accounts)
	app.Handle(http.MethodGet, version, "/accounts/list/:account", pbl.Accounts)
	app.Handle(http.MethodGet, version, "/blocks/list/:from/:to", pbl.BlocksByNumber)
	app.Handle(http.MethodGet, version, "/blocks/hash/:hash", pbl.BlockByHash)
	app.Handle(http.MethodGet, version, "/blocks/account", pbl.BlocksByAccount)
	app.Handle(http.MethodGet, version, "/blocks/account/:account", pbl.BlocksByAccount)
	app.Handle(http.MethodGet, version, "/tx/uncommitted/list", pbl.Mempool)
	app.Handle(http.MethodGet, version, "/tx/uncommitted/list/:account", pbl.Mempool)
	app.Handle(http.MethodPost, version, "/tx/submit", pbl.SubmitTransaction)
	app.Handle(http.MethodGet, version, "/tx/proof/:hash", pbl.TxProof)
	app.Handle(http.MethodGet, version, "/chain/validate", pbl.ValidateChain)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
	}

	app.Handle(http.MethodGet, version, "/node/status", prv.Status)
	app.Handle(http.MethodGet, version, "/node/work", prv.GetWork)
	app.Handle(http.MethodGet, version, "/node/work/:miner", prv.GetWork)
	app.Handle(http.MethodPost, version, "/node/work/submit", prv.SubmitWork)
	app.Handle(http.MethodPost, version, "/node/mine", prv.MineBlock)
	app.Handle(http.MethodPost, version, "/node/mine/:miner", prv.MineBlock)
}
