package account_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsmart/authcore/modules/account"
	"github.com/logsmart/authcore/pkg/rbac"
	"github.com/logsmart/authcore/svc/auth"
)

func TestOperatorRoutes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	member := f.store.Add(auth.User{Email: "member@example.com", Role: rbac.RoleMember})
	companyAdmin := f.store.Add(auth.User{Email: "owner@example.com", Role: rbac.RoleAdmin})
	operator := f.store.Add(auth.User{Email: "ops@logsmart.io", Role: rbac.RoleLogSmartAdmin})

	for _, path := range []string{"/health/database", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			t.Parallel()

			rec := f.do(t, request{method: http.MethodGet, path: path})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			rec = f.do(t, request{method: http.MethodGet, path: path, token: f.token(t, member)})
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, "Insufficient permissions", errorOf(t, rec))

			rec = f.do(t, request{method: http.MethodGet, path: path, token: f.token(t, companyAdmin)})
			assert.Equal(t, http.StatusForbidden, rec.Code)

			rec = f.do(t, request{method: http.MethodGet, path: path, token: f.token(t, operator)})
			assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		})
	}

	t.Run("pool stats body", func(t *testing.T) {
		t.Parallel()
		rec := f.do(t, request{method: http.MethodGet, path: "/health/database", token: f.token(t, operator)})
		require.Equal(t, http.StatusOK, rec.Code)

		stats := decode[account.PoolStats](t, rec)
		assert.Equal(t, int32(4), stats.TotalConns)
		assert.Equal(t, int32(1), stats.AcquiredConns)
		assert.Equal(t, int32(10), stats.MaxConns)
	})
}
