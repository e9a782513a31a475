package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"farmapos/internal/config"
	"farmapos/internal/infra"
	"farmapos/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

const password = "Secr3t!pass"

type testEnv struct {
	t      *testing.T
	db     *gorm.DB
	engine *gin.Engine
	admin  string // access tokens
	stock  string
	clerk  string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, infra.AutoMigrate(db))

	cfg := &config.Config{
		Env:                "test",
		JWTSecret:          "test-secret-key",
		JWTExpirationHours: 8,
		JWTRefreshHours:    24,
		PharmacyName:       "Farmacia Teste",
	}
	env := &testEnv{t: t, db: db, engine: New(Deps{Config: cfg, DB: db})}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	for _, u := range []model.User{
		{Name: "Admin", Email: "admin@test.local", Role: model.RoleAdmin},
		{Name: "Sara", Email: "sara@test.local", Role: model.RoleStockist},
		{Name: "Ana", Email: "ana@test.local", Role: model.RoleAttendant},
	} {
		u.PasswordHash = string(hash)
		require.NoError(t, db.Create(&u).Error)
	}
	env.admin = env.login("admin@test.local")
	env.stock = env.login("sara@test.local")
	env.clerk = env.login("ana@test.local")
	return env
}

func (e *testEnv) do(method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(email string) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		AccessToken string `json:"accessToken"`
	}
	decode(e.t, w, &body)
	require.NotEmpty(e.t, body.AccessToken)
	return body.AccessToken
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

func errOf(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var b errorBody
	decode(t, w, &b)
	return b
}

func productBody(name, barcode string, stock int) map[string]interface{} {
	return map[string]interface{}{
		"name":             name,
		"category":         "Analgesic",
		"purchasePrice":    60,
		"sellingPrice":     "100.00",
		"stockQuantity":    stock,
		"minStockQuantity": 1,
		"expiryDate":       time.Now().UTC().AddDate(1, 0, 0).Format(time.RFC3339),
		"barcode":          barcode,
	}
}

func (e *testEnv) createProduct(name, barcode string, stock int) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/v1/products", e.stock, productBody(name, barcode, stock))
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	var p struct {
		ID string `json:"id"`
	}
	decode(e.t, w, &p)
	return p.ID
}

func cart(id string, qty int) map[string]interface{} {
	return map[string]interface{}{
		"cart":          []map[string]interface{}{{"id": id, "quantity": qty}},
		"discount":      "50",
		"paymentMethod": "dinheiro",
	}
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := setupTestEnv(t)
	w := env.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	decode(t, w, &body)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "connected", body["db"])
	assert.Equal(t, "disabled", body["redis"])
}

func TestAuthEndpoints(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(http.MethodGet, "/v1/auth/me", env.clerk, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	decode(t, w, &me)
	assert.Equal(t, "ana@test.local", me.Email)
	assert.Equal(t, "ATTENDANT", me.Role)

	w = env.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "ana@test.local", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid email or password", errOf(t, w).Error)

	w = env.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errOf(t, w).Fields, "email")

	w = env.do(http.MethodGet, "/v1/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "authentication required", errOf(t, w).Error)
}

func TestRoleEnforcement(t *testing.T) {
	env := setupTestEnv(t)

	cases := []struct {
		method, path, token string
		want                int
	}{
		{http.MethodPost, "/v1/products", "clerk", http.StatusForbidden},
		{http.MethodGet, "/v1/products", "clerk", http.StatusOK},
		{http.MethodPost, "/v1/sales", "stock", http.StatusForbidden},
		{http.MethodGet, "/v1/sales", "clerk", http.StatusForbidden},
		{http.MethodGet, "/v1/users", "stock", http.StatusForbidden},
		{http.MethodGet, "/v1/logs", "clerk", http.StatusForbidden},
		{http.MethodGet, "/v1/reports/sales", "clerk", http.StatusForbidden},
		{http.MethodGet, "/v1/reports/my-sales", "clerk", http.StatusOK},
		{http.MethodGet, "/v1/reports/stock-movements", "stock", http.StatusOK},
		{http.MethodGet, "/v1/reports/stock-dashboard", "clerk", http.StatusOK},
		{http.MethodGet, "/v1/reports/stock-alerts", "admin", http.StatusOK},
	}
	tokens := map[string]string{"admin": env.admin, "stock": env.stock, "clerk": env.clerk}
	for _, tc := range cases {
		t.Run(tc.token+" "+tc.method+" "+tc.path, func(t *testing.T) {
			w := env.do(tc.method, tc.path, tokens[tc.token], nil)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
			if tc.want == http.StatusForbidden {
				assert.Equal(t, "access denied", errOf(t, w).Error)
			}
		})
	}
}

func TestProductEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createProduct("Dipirona 500mg", "7891000", 5)

	t.Run("missing fields", func(t *testing.T) {
		body := productBody("", "", 5)
		delete(body, "stockQuantity")
		w := env.do(http.MethodPost, "/v1/products", env.admin, body)
		require.Equal(t, http.StatusBadRequest, w.Code)
		fields := errOf(t, w).Fields
		assert.Contains(t, fields, "name")
		assert.Contains(t, fields, "stockQuantity")
	})

	t.Run("duplicate barcode", func(t *testing.T) {
		w := env.do(http.MethodPost, "/v1/products", env.admin, productBody("Other", "7891000", 1))
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("barcode lookup", func(t *testing.T) {
		w := env.do(http.MethodGet, "/v1/products/barcode/7891000", env.clerk, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var p struct {
			ID           string          `json:"id"`
			SellingPrice decimal.Decimal `json:"sellingPrice"`
		}
		decode(t, w, &p)
		assert.Equal(t, id, p.ID)
		assert.True(t, decimal.NewFromInt(100).Equal(p.SellingPrice))
	})

	t.Run("adjust stock", func(t *testing.T) {
		w := env.do(http.MethodPut, "/v1/products/"+id, env.stock, map[string]interface{}{"stockQuantity": 9})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = env.do(http.MethodGet, "/v1/reports/stock-movements?productId="+id, env.stock, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var movements []struct {
			Kind           string `json:"kind"`
			QuantityChange int    `json:"quantityChange"`
			Reason         string `json:"reason"`
		}
		decode(t, w, &movements)
		require.Len(t, movements, 1)
		assert.Equal(t, "ADJUSTMENT", movements[0].Kind)
		assert.Equal(t, 4, movements[0].QuantityChange)
		assert.Equal(t, "manual adjustment", movements[0].Reason)
	})

	t.Run("update unknown", func(t *testing.T) {
		w := env.do(http.MethodPut, "/v1/products/00000000-0000-0000-0000-000000000001", env.stock, map[string]interface{}{"name": "Xy"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := env.do(http.MethodGet, "/v1/products/42", env.stock, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete never-sold product", func(t *testing.T) {
		spare := env.createProduct("Gaze", "", 3)
		assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/v1/products/"+spare, env.stock, nil).Code)
		assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/v1/products/"+spare, env.stock, nil).Code)
	})
}

func TestProductInputDecoding(t *testing.T) {
	env := setupTestEnv(t)
	expiry := time.Now().UTC().AddDate(1, 0, 0).Format("2006-01-02")

	body := productBody("Amoxicilina 500mg", "", 10)
	body["expiryDate"] = expiry
	w := env.do(http.MethodPost, "/v1/products", env.stock, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p struct {
		ID         string    `json:"id"`
		ExpiryDate time.Time `json:"expiryDate"`
	}
	decode(t, w, &p)
	assert.Equal(t, expiry, p.ExpiryDate.Format("2006-01-02"))

	t.Run("date-only expiry on update", func(t *testing.T) {
		later := time.Now().UTC().AddDate(2, 0, 0).Format("2006-01-02")
		w := env.do(http.MethodPut, "/v1/products/"+p.ID, env.stock, map[string]interface{}{"expiryDate": later})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got struct {
			ExpiryDate time.Time `json:"expiryDate"`
		}
		decode(t, w, &got)
		assert.Equal(t, later, got.ExpiryDate.Format("2006-01-02"))
	})

	t.Run("unreadable date names the field", func(t *testing.T) {
		body := productBody("Gaze", "", 1)
		body["expiryDate"] = "18/10/2027"
		w := env.do(http.MethodPost, "/v1/products", env.stock, body)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, errOf(t, w).Fields, "expiryDate")
	})

	t.Run("wrong JSON type names the field", func(t *testing.T) {
		w := env.do(http.MethodPut, "/v1/products/"+p.ID, env.stock, map[string]interface{}{"stockQuantity": "7"})
		require.Equal(t, http.StatusBadRequest, w.Code)
		e := errOf(t, w)
		assert.Equal(t, "stockQuantity must be an integer", e.Fields["stockQuantity"])
		assert.Equal(t, "stockQuantity must be an integer", e.Error)
	})

	t.Run("oversized price", func(t *testing.T) {
		for _, price := range []string{"1e30000000", "10000000000"} {
			body := productBody("Soro", "", 1)
			body["sellingPrice"] = price
			start := time.Now()
			w := env.do(http.MethodPost, "/v1/products", env.stock, body)
			assert.Less(t, time.Since(start), time.Second, price)
			require.Equal(t, http.StatusBadRequest, w.Code, price)
			assert.Contains(t, errOf(t, w).Fields, "sellingPrice", price)

			w = env.do(http.MethodPut, "/v1/products/"+p.ID, env.stock, map[string]interface{}{"purchasePrice": price})
			require.Equal(t, http.StatusBadRequest, w.Code, price)
			assert.Contains(t, errOf(t, w).Fields, "purchasePrice", price)
		}
	})
}

func TestSaleEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createProduct("Dipirona 500mg", "7891000", 5)

	w := env.do(http.MethodPost, "/v1/sales", env.clerk, cart(id, 2), "Idempotency-Key", "till-1-0001")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sale struct {
		ID       string          `json:"id"`
		Total    decimal.Decimal `json:"total"`
		Replayed bool            `json:"replayed"`
	}
	decode(t, w, &sale)
	assert.True(t, decimal.NewFromInt(150).Equal(sale.Total), "total %s", sale.Total)

	t.Run("replay", func(t *testing.T) {
		w := env.do(http.MethodPost, "/v1/sales", env.clerk, cart(id, 2), "Idempotency-Key", "till-1-0001")
		require.Equal(t, http.StatusOK, w.Code)
		var again struct {
			ID       string `json:"id"`
			Replayed bool   `json:"replayed"`
		}
		decode(t, w, &again)
		assert.Equal(t, sale.ID, again.ID)
		assert.True(t, again.Replayed)
	})

	t.Run("insufficient stock", func(t *testing.T) {
		w := env.do(http.MethodPost, "/v1/sales", env.clerk, cart(id, 10))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "insufficient stock for Dipirona 500mg", errOf(t, w).Error)
	})

	t.Run("unknown product", func(t *testing.T) {
		w := env.do(http.MethodPost, "/v1/sales", env.clerk, cart("00000000-0000-0000-0000-000000000001", 1))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, errOf(t, w).Error, "product not found")
	})

	t.Run("invalid payment method", func(t *testing.T) {
		body := cart(id, 1)
		body["paymentMethod"] = "cheque"
		w := env.do(http.MethodPost, "/v1/sales", env.clerk, body)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, errOf(t, w).Fields, "paymentMethod")
	})

	t.Run("stock reflects one sale", func(t *testing.T) {
		w := env.do(http.MethodGet, "/v1/products/"+id, env.clerk, nil)
		var p struct {
			StockQuantity int `json:"stockQuantity"`
		}
		decode(t, w, &p)
		assert.Equal(t, 3, p.StockQuantity)
	})

	t.Run("receipt", func(t *testing.T) {
		w := env.do(http.MethodGet, "/v1/sales/"+sale.ID+"/receipt", env.clerk, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
	})

	t.Run("admin lists sales", func(t *testing.T) {
		w := env.do(http.MethodGet, "/v1/sales", env.admin, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var list struct {
			Total int64 `json:"total"`
		}
		decode(t, w, &list)
		assert.EqualValues(t, 1, list.Total)
	})

	t.Run("sold product cannot be deleted", func(t *testing.T) {
		w := env.do(http.MethodDelete, "/v1/products/"+id, env.admin, nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "cannot delete a product that has been sold", errOf(t, w).Error)
	})
}

func TestSaleDiscountAndIdempotencyScope(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createProduct("Dipirona 500mg", "", 10)

	t.Run("oversized discount is ignored", func(t *testing.T) {
		body := cart(id, 1)
		body["discount"] = "1e30000000"
		start := time.Now()
		w := env.do(http.MethodPost, "/v1/sales", env.clerk, body)
		assert.Less(t, time.Since(start), time.Second)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var sale struct {
			Discount decimal.Decimal `json:"discount"`
			Total    decimal.Decimal `json:"total"`
		}
		decode(t, w, &sale)
		assert.True(t, sale.Discount.IsZero(), "discount %s", sale.Discount)
		assert.True(t, decimal.NewFromInt(100).Equal(sale.Total), "total %s", sale.Total)
	})

	t.Run("discount is capped at the subtotal", func(t *testing.T) {
		body := cart(id, 1)
		body["discount"] = "5000"
		w := env.do(http.MethodPost, "/v1/sales", env.clerk, body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var sale struct {
			Discount decimal.Decimal `json:"discount"`
			Total    decimal.Decimal `json:"total"`
		}
		decode(t, w, &sale)
		assert.True(t, decimal.NewFromInt(100).Equal(sale.Discount), "discount %s", sale.Discount)
		assert.True(t, sale.Total.IsZero())
	})

	t.Run("idempotency key is per attendant", func(t *testing.T) {
		w := env.do(http.MethodPost, "/v1/sales", env.clerk, cart(id, 1), "Idempotency-Key", "shared-key")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var first struct {
			ID string `json:"id"`
		}
		decode(t, w, &first)

		w = env.do(http.MethodPost, "/v1/sales", env.admin, cart(id, 1), "Idempotency-Key", "shared-key")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var second struct {
			ID        string `json:"id"`
			Replayed  bool   `json:"replayed"`
			Attendant struct {
				Name string `json:"name"`
			} `json:"attendant"`
		}
		decode(t, w, &second)
		assert.NotEqual(t, first.ID, second.ID)
		assert.False(t, second.Replayed)
		assert.Equal(t, "Admin", second.Attendant.Name)
	})
}

func TestUserEndpoints(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("weak password", func(t *testing.T) {
		w := env.do(http.MethodPost, "/v1/users", env.admin, map[string]string{
			"name": "Bruno", "email": "bruno@test.local", "password": "weakpass", "role": "ATTENDANT",
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, errOf(t, w).Fields, "password")
	})

	w := env.do(http.MethodPost, "/v1/users", env.admin, map[string]string{
		"name": "Bruno", "email": "bruno@test.local", "password": "Str0ng!pass", "role": "ATTENDANT",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var bruno struct {
		ID string `json:"id"`
	}
	decode(t, w, &bruno)

	var me struct {
		ID string `json:"id"`
	}
	decode(t, env.do(http.MethodGet, "/v1/auth/me", env.admin, nil), &me)

	t.Run("cannot deactivate self", func(t *testing.T) {
		w := env.do(http.MethodDelete, "/v1/users/"+me.ID, env.admin, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("empty update", func(t *testing.T) {
		w := env.do(http.MethodPut, "/v1/users/"+bruno.ID, env.admin, map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("deactivate and reactivate", func(t *testing.T) {
		w := env.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "bruno@test.local", "password": "Str0ng!pass"})
		require.Equal(t, http.StatusOK, w.Code)
		var session struct {
			AccessToken string `json:"accessToken"`
		}
		decode(t, w, &session)

		require.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/v1/users/"+bruno.ID, env.admin, nil).Code)

		w = env.do(http.MethodGet, "/v1/auth/me", session.AccessToken, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "issued token stops working once deactivated")

		var inactive []struct {
			ID string `json:"id"`
		}
		decode(t, env.do(http.MethodGet, "/v1/users/inactive", env.admin, nil), &inactive)
		require.Len(t, inactive, 1)
		assert.Equal(t, bruno.ID, inactive[0].ID)

		w = env.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "bruno@test.local", "password": "Str0ng!pass"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = env.do(http.MethodPatch, "/v1/users/"+bruno.ID+"/reactivate", env.admin, nil)
		require.Equal(t, http.StatusOK, w.Code)
		w = env.do(http.MethodPatch, "/v1/users/"+bruno.ID+"/reactivate", env.admin, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("audit log", func(t *testing.T) {
		w := env.do(http.MethodGet, "/v1/logs?limit=10", env.admin, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var logs struct {
			Total int64 `json:"total"`
			Data  []struct {
				Action string `json:"action"`
			} `json:"data"`
		}
		decode(t, w, &logs)
		assert.EqualValues(t, 3, logs.Total)
		require.NotEmpty(t, logs.Data)
		assert.Equal(t, model.ActionUserReactivated, logs.Data[0].Action)
	})
}
