package service

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jekmagalaman/gso/internal/config"
	"github.com/jekmagalaman/gso/internal/gso/repository"
	"github.com/jekmagalaman/gso/internal/gso/sse"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services groups every GSO service.
type Services struct {
	Auth         *AuthService
	Account      *AccountService
	Request      *RequestService
	Inventory    *InventoryService
	Indicator    *IndicatorService
	WAR          *WARService
	IPMT         *IPMTService
	Export       *ExportService
	Feedback     *FeedbackService
	Notification *NotificationService
}

// Deps carries optional collaborators. Nil fields disable the feature.
type Deps struct {
	Generator Generator
	Redis     *redis.Client
	Store     ObjectStore
	Hub       *sse.Hub
	Logger    *zap.Logger
}

// NewServices wires the services together.
func NewServices(db *gorm.DB, repos *repository.Repositories, cfg *config.Config, deps Deps) *Services {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	narrator := NewNarrator(deps.Generator)
	notifier := NewNotificationService(repos.Notification, repos.User, deps.Hub, logger)
	inventory := NewInventoryService(db, repos.Inventory, repos.Unit)
	indicators := NewIndicatorService(repos.Indicator, repos.Unit)
	wars := NewWARService(repos, indicators, narrator, logger)
	ipmt := NewIPMTService(db, repos, indicators, narrator)

	requests := NewRequestService(db, repos, inventory, wars, logger)
	requests.SetNotifier(notifier)
	if deps.Store != nil {
		requests.SetObjectStore(deps.Store)
	}

	return &Services{
		Auth:         NewAuthService(repos.User, deps.Redis, cfg.JWT),
		Account:      NewAccountService(repos.User, repos.Unit),
		Request:      requests,
		Inventory:    inventory,
		Indicator:    indicators,
		WAR:          wars,
		IPMT:         ipmt,
		Export:       NewExportService(repos, wars, ipmt, cfg.Report),
		Feedback:     NewFeedbackService(repos.Feedback, repos.Request),
		Notification: notifier,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateStruct runs struct tag validation and reports the first failure
// as a ValidationError.
func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return validationErr(fe.Field(), describeTag(fe))
	}
	return validationErr("", err.Error())
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "is invalid"
	}
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// MonthRange returns [first day of month, first day of next month) in UTC.
func MonthRange(year, month int) (time.Time, time.Time) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// MonthKey formats year and month as YYYY-MM.
func MonthKey(year, month int) string {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}
