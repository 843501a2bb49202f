package dig_container

import (
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/placegrade/apps/api/echo"
	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/allowlist"
	"github.com/trezcool/placegrade/core/place"
	"github.com/trezcool/placegrade/core/review"
	"github.com/trezcool/placegrade/core/user"
	emailsvc "github.com/trezcool/placegrade/services/email"
	logsvc "github.com/trezcool/placegrade/services/logger"
	placesvc "github.com/trezcool/placegrade/services/places"
	"github.com/trezcool/placegrade/storage/database"
	sqlxrepos "github.com/trezcool/placegrade/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type serverParams struct {
	dig.In

	Conf         *core.Config
	Logger       core.Logger
	UserSvc      user.Service
	AllowlistSvc allowlist.Service
	PlaceSvc     place.Service
	ReviewSvc    review.Service
	Validate     *validator.Validate
	Translator   ut.Translator
}

func newLogger(conf *core.Config) core.Logger {
	return logsvc.New("API : ", conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.New("DB : ", conf)
}

// newDB creates, opens and migrates the database.
func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB, "up"); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal("setting up database", err)
	}
	return db, db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newPlacesProvider falls back to an empty provider when no Google API key is configured.
func newPlacesProvider(conf *core.Config, logger core.Logger) place.Provider {
	if conf.Places.APIKey == "" {
		logger.Warn("no places API key set: search will not find any place")
		return placesvc.NewProviderMock()
	}
	return placesvc.NewGoogleProvider(conf)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	place.RegisterValidators(validate, translator)
	return validate
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:         p.Conf,
		Logger:       p.Logger,
		UserSvc:      p.UserSvc,
		AllowlistSvc: p.AllowlistSvc,
		PlaceSvc:     p.PlaceSvc,
		ReviewSvc:    p.ReviewSvc,
		Validate:     p.Validate,
		Translator:   p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(newPlacesProvider))
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewAllowlistRepository))
	must(c.Provide(sqlxrepos.NewPlaceRepository))
	must(c.Provide(sqlxrepos.NewReviewRepository))
	must(c.Provide(user.NewService))
	must(c.Provide(allowlist.NewService))
	must(c.Provide(place.NewService))
	must(c.Provide(review.NewService))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}

// Visualize writes the dependency graph of c in DOT format.
func Visualize(c *dig.Container) error {
	return dig.Visualize(c, os.Stdout)
}
