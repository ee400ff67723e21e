package handler

import (
	"bytes"
	"net/http"
	"strconv"
	"testing"

	"github.com/jekmagalaman/gso/internal/gso/entity"
	"github.com/jekmagalaman/gso/internal/gso/testutil"
	"github.com/xuri/excelize/v2"
)

func completeRequest(t *testing.T, e *apiEnv) string {
	t.Helper()
	id := e.createRequest(t)
	base := "/api/v1/requests/" + id
	e.do(t, "POST", base+"/approve", nil, e.director, http.StatusOK)
	e.do(t, "PUT", base+"/assignment", map[string]interface{}{"personnel_ids": []string{e.workerID}}, e.head, http.StatusOK)
	e.do(t, "POST", base+"/start", nil, e.worker, http.StatusOK)
	e.do(t, "POST", base+"/submit", nil, e.worker, http.StatusOK)
	e.do(t, "POST", base+"/complete", nil, e.head, http.StatusOK)
	return id
}

func TestReportAPI_WARListAndExport(t *testing.T) {
	e := setupAPITest(t)
	completeRequest(t, e)

	resp := e.do(t, "GET", "/api/v1/wars", nil, e.director, http.StatusOK)
	items := resp["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("Expected 1 WAR, got %d", len(items))
	}
	war := items[0].(map[string]interface{})
	started := war["date_started"].(string)
	year, month := started[0:4], started[5:7]

	e.do(t, "GET", "/api/v1/wars", nil, e.worker, http.StatusForbidden)
	resp = e.do(t, "GET", "/api/v1/wars", nil, e.head, http.StatusForbidden)
	if resp["code"] != float64(40300) {
		t.Errorf("Expected code 40300 for unit head, got %v", resp["code"])
	}
	e.do(t, "GET", "/api/v1/wars?month=abc", nil, e.director, http.StatusBadRequest)

	w := testutil.DoRequest(e.router, "GET", "/api/v1/wars/export?unit_id="+e.unit.ID+"&year="+year+"&month="+month, nil, e.director)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("Unexpected content type %q", ct)
	}
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	if v, _ := f.GetCellValue("WAR", "D11"); v != "Replace the hallway ballast" {
		t.Errorf("Expected description in D11, got %q", v)
	}
}

func TestReportAPI_IPMTPreviewSave(t *testing.T) {
	e := setupAPITest(t)
	ind := testutil.SeedIndicator(t, e.DB, e.unit.ID, "SI-1", "Repairs done")
	completeRequest(t, e)

	resp := e.do(t, "GET", "/api/v1/wars", nil, e.director, http.StatusOK)
	war := resp["data"].(map[string]interface{})["items"].([]interface{})[0].(map[string]interface{})
	e.do(t, "PUT", "/api/v1/wars/"+war["id"].(string), map[string]interface{}{"indicator_id": ind.ID}, e.director, http.StatusOK)

	started := war["date_started"].(string)
	year, _ := strconv.Atoi(started[0:4])
	month, _ := strconv.Atoi(started[5:7])

	resp = e.do(t, "POST", "/api/v1/ipmt/preview", map[string]interface{}{
		"unit_id": e.unit.ID, "year": year, "month": month, "personnel": []string{"Juan Cruz"},
	}, e.director, http.StatusOK)
	tables := resp["data"].(map[string]interface{})["tables"].([]interface{})
	rows := tables[0].(map[string]interface{})["rows"].([]interface{})
	row := rows[0].(map[string]interface{})
	if row["accomplishment"] != "Replace the hallway ballast" {
		t.Errorf("Unexpected accomplishment %v", row["accomplishment"])
	}
	if row["remarks"] != entity.RemarkComplied {
		t.Errorf("Unexpected remarks %v", row["remarks"])
	}
	if e.Generator.Calls() != 0 {
		t.Errorf("Expected no generator calls, got %d", e.Generator.Calls())
	}

	save := map[string]interface{}{
		"unit_id": e.unit.ID, "year": year, "month": month, "personnel": e.workerID,
		"rows": []map[string]interface{}{{
			"indicator_id":   ind.ID,
			"accomplishment": row["accomplishment"],
			"war_ids":        row["war_ids"],
		}},
	}
	e.do(t, "POST", "/api/v1/ipmt", save, e.head, http.StatusForbidden)
	e.do(t, "POST", "/api/v1/ipmt", save, e.director, http.StatusOK)

	w := testutil.DoRequest(e.router, "GET", "/api/v1/ipmt/export?unit_id="+e.unit.ID+"&personnel=worker&year="+started[0:4]+"&month="+started[5:7], nil, e.director)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	if v, _ := f.GetCellValue("IPMT", "A13"); v != "SI-1" {
		t.Errorf("Expected SI-1 in A13, got %q", v)
	}
}
