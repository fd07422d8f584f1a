package paas

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, docsMarkdown)
	})
}

const docsMarkdown = `# Raffle Service

Players deposit the entrance fee while the round is OPEN. Once the interval
has passed and the pot is non-empty, the keeper asks the randomness oracle
for a word and the round moves to CALCULATING. The oracle's answer picks
the winner (word mod players), who receives the whole pot.

## Access via PaaS

Base path (through gateway):
- /api/v1/services/raffle/

## Endpoints

- GET  /api/v1/raffle                 round snapshot
- POST /api/v1/raffle/enter           {"participant":"0x..","amount":"10000000000000000"}
- GET  /api/v1/raffle/players/:index
- GET  /api/v1/raffle/upkeep          upkeep check
- POST /api/v1/raffle/upkeep          perform upkeep (request randomness)
- POST /api/v1/raffle/draw/cancel     drop a stale draw (needs raffle.draw_timeout)
- GET  /api/v1/raffle/events          observation journal (?kind, ?round, ?participant, ?since=RFC3339)
- GET  /api/v1/raffle/draws           draw history
- GET  /api/v1/raffle/draws/:request_id
- GET  /api/v1/raffle/stream          websocket observation stream
- POST /api/v1/oracle/fulfill         oracle callback (HS256 bearer)
- POST /api/v1/oracle/local/fulfill   settle a local request (app.env=dev only)
- GET  /api/v1/oracle/local/pending   (app.env=dev only)
- GET  /api/v1/bank/accounts/:address
- POST /api/v1/bank/faucet
- POST /api/v1/bank/halt, /api/v1/bank/resume
- GET  /api/v1/settings, PUT /api/v1/settings/:key

## Auth

All /api/* routes require a Bearer token (validated by the PaaS gateway),
except the oracle callback which verifies its own HS256 token.
Health endpoints and the OpenAPI UI at /swagger/index.html are public.
`
