package services

// Observer receives workflow events, typically the Prometheus collectors.
type Observer interface {
	StatusChanged(family, status, result string)
	VerifyLookup(result string)
	PriceChanged()
}

type nopObserver struct{}

func (nopObserver) StatusChanged(string, string, string) {}
func (nopObserver) VerifyLookup(string)                  {}
func (nopObserver) PriceChanged()                        {}

func orNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
