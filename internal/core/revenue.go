package core

// Revenue is the per-status breakdown of a period. Task income is always
// counted as paid. NotWorkedHours is informational and never priced.
type Revenue struct {
	Paid           Money
	Unpaid         Money
	Pending        Money
	TasksTotal     Money // portion of Paid that comes from weekly tasks
	NotWorkedHours int
}

func (r Revenue) Total() Money {
	return r.Paid.Add(r.Unpaid).Add(r.Pending)
}

func (r Revenue) Add(o Revenue) Revenue {
	return Revenue{
		Paid:           r.Paid.Add(o.Paid),
		Unpaid:         r.Unpaid.Add(o.Unpaid),
		Pending:        r.Pending.Add(o.Pending),
		TasksTotal:     r.TasksTotal.Add(o.TasksTotal),
		NotWorkedHours: r.NotWorkedHours + o.NotWorkedHours,
	}
}
