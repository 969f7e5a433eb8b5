package handlers

import (
	"fmt"
	"net/http"
	"time"

	"discreetx-backend/internal/authz"
	"discreetx-backend/internal/calls"
	"discreetx-backend/internal/fanout"
	"discreetx-backend/internal/messages"
	"discreetx-backend/internal/models"
	"discreetx-backend/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	playgroundValidator "github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var sugar *zap.SugaredLogger
var st store.Store
var gate *authz.Gate
var msgService *messages.Service
var callCoordinator *calls.Coordinator
var eventRouter *fanout.Router

var validate = playgroundValidator.New()

type Deps struct {
	Store    store.Store
	Gate     *authz.Gate
	Messages *messages.Service
	Calls    *calls.Coordinator
	Router   *fanout.Router
}

func Setup(isHttps bool, cfg *models.ConfigFile, _sugar *zap.SugaredLogger, deps Deps) error {
	sugar = _sugar
	st = deps.Store
	gate = deps.Gate
	msgService = deps.Messages
	callCoordinator = deps.Calls
	eventRouter = deps.Router

	r := chi.NewRouter()
	if cfg.Cors {
		r.Use(AllowCors)
	}
	if cfg.PrintHttpRequests {
		r.Use(middleware.Logger)
	}

	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(r chi.Router) {
			r.Post("/register", Register)
			r.Post("/login", Login)
			r.With(ProfileVerifier).Get("/newSession", NewSession)
			r.With(ProfileVerifier).Get("/isLoggedIn", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
		})

		api.Route("/profile", func(r chi.Router) {
			r.Use(ProfileVerifier)
			r.Get("/fetch", GetProfile)
			r.Post("/update", UpdateProfile)
		})

		api.Route("/server", func(r chi.Router) {
			r.Use(ProfileVerifier)
			r.Post("/create", CreateServer)
			r.Get("/fetch", GetServerList)
			r.Post("/rename", RenameServer)
			r.Post("/delete", DeleteServer)
			r.Post("/leave", LeaveServer)
		})

		api.Route("/channel", func(r chi.Router) {
			r.Use(ProfileVerifier)
			r.Post("/create", CreateChannel)
			r.With(SessionVerifier).Get("/fetch", GetChannelList)
			r.Post("/rename", RenameChannel)
			r.Post("/delete", DeleteChannel)
		})

		api.Route("/members", func(r chi.Router) {
			r.Use(ProfileVerifier)
			r.Get("/fetch", GetMemberList)
			r.Post("/role", ChangeMemberRole)
			r.Post("/kick", KickMember)
		})

		api.Route("/conversation", func(r chi.Router) {
			r.Use(ProfileVerifier)
			r.Post("/open", OpenConversation)
		})

		api.Route("/message", func(r chi.Router) {
			r.Use(ProfileVerifier)
			r.Post("/create", CreateMessage)
			r.With(SessionVerifier).Get("/fetch", GetMessageList)
			r.Post("/edit", EditMessage)
			r.Post("/delete", DeleteMessage)
			r.Post("/typing", Typing)
		})

		api.Route("/call", func(r chi.Router) {
			r.Use(ProfileVerifier)
			r.Post("/start", StartCall)
			r.Post("/update", UpdateCall)
			r.Post("/end", EndCall)
		})

		api.With(ProfileVerifier).Post("/upload", UploadAttachment)
	})

	var websocketPath string

	if cfg.BehindNginx {
		websocketPath = "/ws/"
	} else {
		websocketPath = "/ws"
		r.Handle("/cdn/*", http.StripPrefix("/cdn/", http.FileServer(http.Dir("./public"))))
		r.Handle("/*", http.FileServer(http.Dir("./public/static")))
	}

	r.With(ProfileVerifier).Get(websocketPath, HandleWebSocket)

	address := fmt.Sprintf("%s:%s", cfg.Address, cfg.Port)

	if isHttps {
		return http.ListenAndServeTLS(address, cfg.TlsCert, cfg.TlsKey, r)
	}
	return http.ListenAndServe(address, r)
}
