package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilder_Select(t *testing.T) {
	q := From("instance_stage_data").
		Select("id", "status", "COUNT(*) AS total").
		Where("`instance_stage_data`.`instance_id` = ?", int64(4)).
		WhereIn("`instance_stage_data`.`stage_id`", []interface{}{int64(1), int64(2)}).
		OrderBy("created_at", "DESC").
		OrderBy("id", "DESC").
		Limit(10).
		Build()

	assert.Equal(t, "SELECT `instance_stage_data`.`id`, `instance_stage_data`.`status`, COUNT(*) AS total FROM `instance_stage_data` "+
		"WHERE `instance_stage_data`.`instance_id` = ? AND `instance_stage_data`.`stage_id` IN (?, ?) "+
		"ORDER BY `instance_stage_data`.`created_at` DESC, `instance_stage_data`.`id` DESC LIMIT 10", q.SQL)
	assert.Equal(t, []interface{}{int64(4), int64(1), int64(2)}, q.Params)
}

func TestBuilder_WhereInEmpty(t *testing.T) {
	q := From("workflow_stages").WhereIn("id", nil).Build()
	assert.Equal(t, "SELECT * FROM `workflow_stages` WHERE 1 = 0", q.SQL)
	assert.Empty(t, q.Params)
}

func TestBuilder_InsertIsDeterministic(t *testing.T) {
	data := map[string]interface{}{"status": "PENDING", "instance_id": 3, "form_data": "{}"}

	for i := 0; i < 5; i++ {
		q := Insert("instance_stage_data", data).Build()
		assert.Equal(t, "INSERT INTO `instance_stage_data` (`form_data`, `instance_id`, `status`) VALUES (?, ?, ?)", q.SQL)
		assert.Equal(t, []interface{}{"{}", 3, "PENDING"}, q.Params)
	}
}

func TestBuilder_BulkInsert(t *testing.T) {
	q := BulkInsert("stage_dependencies", []string{"parent_stage_id", "child_stage_id"}, [][]interface{}{
		{int64(1), int64(3)},
		{int64(2), int64(3)},
	}).Build()

	assert.Equal(t, "INSERT INTO `stage_dependencies` (`parent_stage_id`, `child_stage_id`) VALUES (?, ?), (?, ?)", q.SQL)
	assert.Equal(t, []interface{}{int64(1), int64(3), int64(2), int64(3)}, q.Params)
}

func TestBuilder_Update(t *testing.T) {
	q := Update("projects").
		Set(map[string]interface{}{"lead_status": "Closed", "updated_at": "now"}).
		Where("project_id = ?", "SOL-1").
		Build()

	assert.Equal(t, "UPDATE `projects` SET `lead_status` = ?, `updated_at` = ? WHERE project_id = ?", q.SQL)
	assert.Equal(t, []interface{}{"Closed", "now", "SOL-1"}, q.Params)
}

func TestBuilder_Delete(t *testing.T) {
	q := Delete("stage_dependencies").Where("child_stage_id = ?", int64(9)).Build()

	assert.Equal(t, "DELETE FROM `stage_dependencies` WHERE child_stage_id = ?", q.SQL)
	assert.Equal(t, []interface{}{int64(9)}, q.Params)
}
