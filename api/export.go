package api

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/labstack/echo/v4"

	"pcbtrack-api/domain"
)

// exportRow is one flattened board for reporting. Columns stay stable so
// downstream spreadsheets keep working.
type exportRow struct {
	BoardName      string `json:"boardName"`
	PartNumber     string `json:"partNumber"`
	Revision       string `json:"revision"`
	Project        string `json:"project"`
	IsNewRevision  bool   `json:"isNewRevision"`
	IsArrived      bool   `json:"isArrived"`
	ArrivedDate    string `json:"arrivedDate"`
	PassFailStatus string `json:"passFailStatus"`
	Progress       int    `json:"progress"`
	CreatedAt      string `json:"createdAt"`
	IsDeleted      bool   `json:"isDeleted"`
	CurrentStage   string `json:"currentStage"`
}

var exportHeader = []string{
	"boardName", "partNumber", "revision", "project", "isNewRevision",
	"isArrived", "arrivedDate", "passFailStatus", "progress",
	"createdAt", "isDeleted", "currentStage",
}

func exportBoards(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger, exportRoute, exportSpanName)
		if spanCtx != nil {
			req := c.Request().WithContext(spanCtx)
			c.SetRequest(req)
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		format := c.QueryParam("format")
		if format == "" {
			format = "json"
		}
		if format != "json" && format != "csv" {
			metrics.SetErrorStage("invalid_format")
			err = c.String(http.StatusBadRequest, "format must be json or csv")
			return err
		}

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

		computeStart := time.Now()
		rows := make([]exportRow, 0, len(boards))
		for i := range boards {
			row, rowErr := buildExportRow(&boards[i])
			if rowErr != nil {
				metrics.ObserveCompute(time.Since(computeStart))
				metrics.SetErrorStage("compute")
				c.Logger().Error(rowErr)
				err = c.String(http.StatusInternalServerError, rowErr.Error())
				return err
			}
			rows = append(rows, row)
		}
		metrics.ObserveCompute(time.Since(computeStart))

		encodeStart := time.Now()
		if format == "csv" {
			err = writeCSV(c, rows)
		} else {
			err = c.JSON(http.StatusOK, rows)
		}
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func buildExportRow(b *domain.Board) (exportRow, error) {
	progress, err := domain.CalculateBoardProgress(b)
	if err != nil {
		return exportRow{}, err
	}
	return exportRow{
		BoardName:      b.BoardName,
		PartNumber:     b.PartNumber,
		Revision:       b.Revision,
		Project:        b.Project,
		IsNewRevision:  b.IsNewRevision,
		IsArrived:      b.IsArrived,
		ArrivedDate:    b.ArrivedDate,
		PassFailStatus: domain.FormatStatusValue(b.PassFailStatus),
		Progress:       progress,
		CreatedAt:      b.CreatedAt,
		IsDeleted:      b.IsDeleted,
		CurrentStage:   domain.CurrentStage(b),
	}, nil
}

func writeCSV(c echo.Context, rows []exportRow) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.BoardName,
			r.PartNumber,
			r.Revision,
			r.Project,
			strconv.FormatBool(r.IsNewRevision),
			strconv.FormatBool(r.IsArrived),
			r.ArrivedDate,
			r.PassFailStatus,
			strconv.Itoa(r.Progress),
			r.CreatedAt,
			strconv.FormatBool(r.IsDeleted),
			r.CurrentStage,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="boards.csv"`)
	return c.Blob(http.StatusOK, "text/csv", buf.Bytes())
}
