package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflow definitions; the graph itself lives in a JSONB document.
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				definition JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);
		`,
		2: `
			-- Execution state; run data and the parked node stack are one JSONB
			-- document written whole at lifecycle boundaries.
			CREATE TABLE executions (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL,
				status VARCHAR(50) NOT NULL,
				mode VARCHAR(50) NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				stopped_at TIMESTAMP WITH TIME ZONE,
				wait_till TIMESTAMP WITH TIME ZONE,
				retry_of UUID,
				data JSONB NOT NULL
			);

			CREATE INDEX idx_executions_workflow_id ON executions(workflow_id);
			CREATE INDEX idx_executions_status ON executions(status);

			-- The wake-up scan of the wait tracker only ever touches parked rows.
			CREATE INDEX idx_executions_wait_till ON executions(wait_till)
				WHERE status = 'waiting';
		`,
	}
}
