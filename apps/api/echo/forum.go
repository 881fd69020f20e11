package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/recedu/reconline/core/forum"
)

type forumApi struct {
	deps ServerDeps
}

func registerForumAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := forumApi{deps: deps}

	tg := g.Group("/forum/threads", jwt)
	tg.POST("", api.createThread)
	tg.GET("/:id", api.retrieveThread)
	tg.POST("/:id/posts", api.reply)
	tg.POST("/:id/lock", api.setLocked, staffMiddleware())

	g.GET("/courses/:id/threads", api.byCourse, jwt)
	g.DELETE("/forum/posts/:id", api.destroyPost, jwt)
}

func (api *forumApi) createThread(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data forum.NewThread
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewThread")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}
	if _, err := api.deps.CourseSvc.GetByID(data.CourseID); err != nil {
		return err
	}

	th, err := api.deps.ForumSvc.CreateThread(ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating thread")
	}
	return ctx.JSON(http.StatusCreated, th)
}

func (api *forumApi) byCourse(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if _, err := api.deps.CourseSvc.GetByID(id); err != nil {
		return err
	}
	threads, err := api.deps.ForumSvc.CourseThreads(id)
	if err != nil {
		return errors.Wrap(err, "querying threads")
	}
	if threads == nil {
		threads = []forum.Thread{}
	}
	return ctx.JSON(http.StatusOK, threads)
}

func (api *forumApi) retrieveThread(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	th, err := api.deps.ForumSvc.GetThread(id)
	if err != nil {
		return err
	}
	posts, err := api.deps.ForumSvc.ThreadPosts(id)
	if err != nil {
		return errors.Wrap(err, "querying posts")
	}
	if posts == nil {
		posts = []forum.Post{}
	}
	return ctx.JSON(http.StatusOK, ThreadDetailResponse{Thread: th, Posts: posts})
}

func (api *forumApi) reply(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data forum.NewPost
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPost")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	p, err := api.deps.ForumSvc.Reply(id, ctxUsr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *forumApi) setLocked(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data LockRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LockRequest")
	}

	th, err := api.deps.ForumSvc.SetLocked(id, ctxUsr, data.Locked)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, th)
}

func (api *forumApi) destroyPost(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.deps.ForumSvc.DeletePost(id, ctxUsr); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

type (
	ThreadDetailResponse struct {
		Thread forum.Thread `json:"thread"`
		Posts  []forum.Post `json:"posts"`
	}

	LockRequest struct {
		Locked bool `json:"locked"`
	}
)
