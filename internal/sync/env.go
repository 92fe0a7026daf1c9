package sync

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/relaycrm/sync-api/internal/models"
)

// orgEnv carries the per-org state resolved once per batch group: the access
// token, the stage lookup table, and the member roster.
type orgEnv struct {
	orgID          string
	token          string
	stageMap       models.StageMap
	membersByID    map[string]models.OrgMember
	membersByEmail map[string]models.OrgMember
	logger         zerolog.Logger
}

func newOrgEnv(orgID, token string, stageMap models.StageMap, members []models.OrgMember, logger zerolog.Logger) *orgEnv {
	env := &orgEnv{
		orgID:          orgID,
		token:          token,
		stageMap:       stageMap,
		membersByID:    make(map[string]models.OrgMember, len(members)),
		membersByEmail: make(map[string]models.OrgMember, len(members)),
		logger:         logger.With().Str("org_id", orgID).Logger(),
	}
	for _, m := range members {
		env.membersByID[m.UserID] = m
		env.membersByEmail[strings.ToLower(m.Email)] = m
	}
	return env
}

func (e *orgEnv) memberByEmail(email string) (models.OrgMember, bool) {
	m, ok := e.membersByEmail[strings.ToLower(email)]
	return m, ok
}

func (e *orgEnv) memberByID(id string) (models.OrgMember, bool) {
	m, ok := e.membersByID[id]
	return m, ok
}
