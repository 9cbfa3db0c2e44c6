package api

import (
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"pcbtrack-api/domain"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, pub Publisher, dedup Deduper, logger *log.Logger) {
	e.GET("/api/boards", getBoards(store, logger))
	e.POST("/api/boards", createBoard(store))
	e.GET("/api/boards/:id", getBoard(store))
	e.PUT("/api/boards/:id", updateBoard(store), GzipRequestMiddleware())
	e.POST("/api/boards/:id/toggle", toggleBoardField(store, dedup))
	e.POST("/api/boards/:id/delete", softDeleteBoard(store))
	e.POST("/api/boards/:id/restore", restoreBoard(store))
	e.DELETE("/api/boards/:id", deleteBoard(store))
	e.GET("/api/boards/:id/progress", getBoardProgress(store))
	e.GET("/api/changelog", getChangeLog(store))
	e.POST("/api/changelog", postChangeLog(store))
	e.GET("/api/users", getUsers(store))
	e.POST("/api/users", postUser(store))
	e.DELETE("/api/users/:name", deleteUser(store))
	e.GET("/api/export", exportBoards(store, logger))
	e.GET("/healthz", healthz(store))

	initEventPublisher(pub, logger)
}

func healthz(_ Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getBoards(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger, boardsRoute, boardsSpanName)
		if spanCtx != nil {
			req := c.Request().WithContext(spanCtx)
			c.SetRequest(req)
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		includeDeleted := c.QueryParam("includeDeleted") == "true"
		metrics.SetIncludeDeleted(includeDeleted)

		fetchStart := time.Now()
		boards, fetchErr := store.ListBoards(ctx, includeDeleted)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.String(http.StatusInternalServerError, fetchErr.Error())
			return err
		}
		metrics.SetBoardsReturned(len(boards))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, boards)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func createBoard(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		lr := io.LimitReader(c.Request().Body, postBoardMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()

		var req createBoardRequest
		if err := dec.Decode(&req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if strings.TrimSpace(req.BoardName) == "" {
			return c.String(http.StatusBadRequest, "boardName is required")
		}

		board := domain.NewBoard(req.BoardName, req.PartNumber, req.Revision, req.Project, req.IsNewRevision)
		if err := store.InsertBoard(ctx, board); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to create board")
		}

		publishBoardEvent(domain.EventBoardCreated, board.ID)

		return boardStateJSON(c, http.StatusCreated, board)
	}
}

func getBoard(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		board, err := store.GetBoard(ctx, c.Param("id"))
		if err != nil {
			var nf NotFoundError
			if errors.As(err, &nf) {
				return c.String(http.StatusNotFound, "board not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, board)
	}
}

func updateBoard(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id := c.Param("id")

		lr := io.LimitReader(c.Request().Body, putBoardMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)

		var board domain.Board
		if err := dec.Decode(&board); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if board.ID == "" {
			board.ID = id
		}
		if board.ID != id {
			return c.String(http.StatusBadRequest, "board id does not match URL")
		}
		if err := board.Validate(); err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}

		if err := store.UpdateBoard(ctx, &board); err != nil {
			var nf NotFoundError
			if errors.As(err, &nf) {
				return c.String(http.StatusNotFound, "board not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to update board")
		}

		publishBoardEvent(domain.EventBoardUpdated, board.ID)

		return boardStateJSON(c, http.StatusOK, &board)
	}
}

func toggleBoardField(store Storage, dedup Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id := c.Param("id")

		role, userName, err := identityFromHeaders(c.Request().Header)
		if err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}

		lr := io.LimitReader(c.Request().Body, postToggleMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()

		var req toggleRequest
		if err := dec.Decode(&req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.Stage == "" {
			return c.String(http.StatusBadRequest, "stage is required")
		}

		idemKey := strings.TrimSpace(c.Request().Header.Get("Idempotency-Key"))
		if idemKey != "" && dedup != nil {
			added, dedupErr := dedup.Add(ctx, id, idemKey)
			if dedupErr != nil {
				c.Logger().Warnf("idempotency check failed, proceeding: %v", dedupErr)
			} else if !added {
				board, getErr := store.GetBoard(ctx, id)
				if getErr != nil {
					var nf NotFoundError
					if errors.As(getErr, &nf) {
						return c.String(http.StatusNotFound, "board not found")
					}
					c.Logger().Error(getErr)
					return c.String(http.StatusInternalServerError, getErr.Error())
				}
				return boardStateJSON(c, http.StatusOK, board)
			}
		}

		releaseKey := func() {
			if idemKey == "" || dedup == nil {
				return
			}
			if remErr := dedup.Remove(ctx, id, idemKey); remErr != nil {
				c.Logger().Warnf("failed to release idempotency key: %v", remErr)
			}
		}

		board, err := store.GetBoard(ctx, id)
		if err != nil {
			releaseKey()
			var nf NotFoundError
			if errors.As(err, &nf) {
				return c.String(http.StatusNotFound, "board not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		changes, err := applyToggle(board, req)
		if err != nil {
			releaseKey()
			return c.String(http.StatusBadRequest, err.Error())
		}

		if len(changes) == 0 {
			return boardStateJSON(c, http.StatusOK, board)
		}

		if err := store.UpdateBoard(ctx, board); err != nil {
			releaseKey()
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to update board")
		}

		now := time.Now().UTC().Format(time.RFC3339)
		for _, ch := range changes {
			entry := domain.ChangeLogEntry{
				ID:        uuid.NewString(),
				Timestamp: now,
				UserRole:  role,
				UserName:  userName,
				BoardID:   board.ID,
				BoardName: board.BoardName,
				Revision:  board.Revision,
				Stage:     ch.Stage,
				Task:      ch.Task,
				Field:     ch.Field,
				OldValue:  ch.OldValue,
				NewValue:  ch.NewValue,
			}
			if logErr := store.AppendChangeLog(ctx, entry); logErr != nil {
				c.Logger().Errorf("failed to append change log: %v", logErr)
			}
		}

		publishBoardEvent(domain.EventBoardUpdated, board.ID)

		return boardStateJSON(c, http.StatusOK, board)
	}
}

// applyToggle routes a toggle request to the matching domain mutation.
func applyToggle(board *domain.Board, req toggleRequest) ([]domain.FieldChange, error) {
	switch {
	case req.Field == domain.FieldRequired:
		if req.Task == "" {
			return nil, errors.New("task is required when toggling the required flag")
		}
		return board.SetTaskRequired(req.Stage, req.Subcategory, req.Task, req.Value)
	case req.Task != "":
		return board.SetTaskApproval(req.Stage, req.Subcategory, req.Task, req.Field, req.Value)
	case req.Subcategory != "":
		return board.SetSubcategoryApproval(req.Stage, req.Subcategory, req.Field, req.Value)
	default:
		return nil, errors.New("task or subcategory is required")
	}
}

func softDeleteBoard(store Storage) echo.HandlerFunc {
	return setBoardDeleted(store, true)
}

func restoreBoard(store Storage) echo.HandlerFunc {
	return setBoardDeleted(store, false)
}

func setBoardDeleted(store Storage, deleted bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		board, err := store.GetBoard(ctx, c.Param("id"))
		if err != nil {
			var nf NotFoundError
			if errors.As(err, &nf) {
				return c.String(http.StatusNotFound, "board not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		if board.IsDeleted == deleted {
			return c.JSON(http.StatusOK, board)
		}

		board.IsDeleted = deleted
		if deleted {
			now := time.Now().UTC().Format(time.RFC3339)
			board.DeletedAt = &now
		} else {
			board.DeletedAt = nil
		}

		if err := store.UpdateBoard(ctx, board); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to update board")
		}

		publishBoardEvent(domain.EventBoardUpdated, board.ID)

		return c.JSON(http.StatusOK, board)
	}
}

func deleteBoard(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id := c.Param("id")
		if err := store.DeleteBoard(ctx, id); err != nil {
			var nf NotFoundError
			if errors.As(err, &nf) {
				return c.String(http.StatusNotFound, "board not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to delete board")
		}

		publishBoardEvent(domain.EventBoardDeleted, id)

		return c.JSON(http.StatusOK, map[string]bool{"ok": true})
	}
}

func getBoardProgress(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		board, err := store.GetBoard(ctx, c.Param("id"))
		if err != nil {
			var nf NotFoundError
			if errors.As(err, &nf) {
				return c.String(http.StatusNotFound, "board not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		progress, err := domain.CalculateBoardProgress(board)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		stages := make([]stageStatus, len(board.Stages))
		for i, st := range board.Stages {
			stages[i] = stageStatus{
				Name:     st.Name,
				Complete: domain.IsStageComplete(st, board.IsNewRevision),
			}
		}

		return c.JSON(http.StatusOK, progressResponse{
			Progress:     progress,
			CurrentStage: domain.CurrentStage(board),
			Stages:       stages,
		})
	}
}

// boardStateJSON answers a board mutation with the board and its derived
// completion values.
func boardStateJSON(c echo.Context, status int, board *domain.Board) error {
	progress, err := domain.CalculateBoardProgress(board)
	if err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(status, boardResponse{
		Board:        board,
		Progress:     progress,
		CurrentStage: domain.CurrentStage(board),
	})
}

func getChangeLog(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		// Empty boardId returns the full log.
		boardID := strings.TrimSpace(c.QueryParam("boardId"))
		entries, err := store.ListChangeLog(ctx, boardID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, entries)
	}
}

func postChangeLog(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		lr := io.LimitReader(c.Request().Body, postToggleMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)

		var entry domain.ChangeLogEntry
		if err := dec.Decode(&entry); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if entry.BoardID == "" {
			return c.String(http.StatusBadRequest, "boardId is required")
		}
		if !entry.UserRole.Valid() {
			return c.String(http.StatusBadRequest, "userRole must be Designer or Reviewer")
		}
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.Timestamp == "" {
			entry.Timestamp = time.Now().UTC().Format(time.RFC3339)
		}

		if err := store.AppendChangeLog(ctx, entry); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to append change log")
		}
		return c.JSON(http.StatusCreated, entry)
	}
}

func getUsers(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		users, err := store.ListUsers(c.Request().Context())
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		sort.Strings(users)
		return c.JSON(http.StatusOK, usersResponse{Users: users})
	}
}

func postUser(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		lr := io.LimitReader(c.Request().Body, postToggleMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()

		var req struct {
			Name string `json:"name"`
		}
		if err := dec.Decode(&req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			return c.String(http.StatusBadRequest, "name is required")
		}

		if err := store.AddUser(ctx, name); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to add user")
		}

		users, err := store.ListUsers(ctx)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		sort.Strings(users)
		return c.JSON(http.StatusCreated, usersResponse{Users: users})
	}
}

func deleteUser(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		name := c.Param("name")
		if err := store.RemoveUser(ctx, name); err != nil {
			var nf NotFoundError
			if errors.As(err, &nf) {
				return c.String(http.StatusNotFound, "user not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to remove user")
		}

		users, err := store.ListUsers(ctx)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		sort.Strings(users)
		return c.JSON(http.StatusOK, usersResponse{Users: users})
	}
}
