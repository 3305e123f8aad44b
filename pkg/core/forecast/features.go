package forecast

import (
	"math"
	"strconv"

	"demand_forecasting/pkg/core/prediction"
)

// Feature names as the trained model knows them. They mirror the columns of
// the historical training table, so the artifact's feature_order can be
// matched by name.
const (
	featProduct    = "Prodotto"
	featCustomer   = "Cliente"
	featMonth      = "Periodo"
	featYear       = "Esercizio"
	featMonthSin   = "Mese_Sin"
	featMonthCos   = "Mese_Cos"
	featQuarter    = "Trimestre"
	featLag1       = "Kg_Lag_1"
	featLag3       = "Kg_Lag_3"
	featMovingAvg3 = "Media_Mobile_3"
)

// DeriveFeatures computes the model input features for one combination.
// history must be ordered by period ascending (oldest first), as returned by
// the store; lag and moving-average features default to 0 when fewer than
// the required history points exist.
func DeriveFeatures(productID, customerID string, year, month int, history []*prediction.PredictionRecord) map[string]float64 {
	features := map[string]float64{
		featMonth:    float64(month),
		featYear:     float64(year),
		featMonthSin: math.Sin(2 * math.Pi * float64(month) / 12),
		featMonthCos: math.Cos(2 * math.Pi * float64(month) / 12),
		featQuarter:  float64((month-1)/3 + 1),
	}

	// Identifiers enter the model numerically when they are numeric codes;
	// non-numeric identifiers contribute 0, as at training time.
	if v, err := strconv.ParseFloat(productID, 64); err == nil {
		features[featProduct] = v
	}
	if v, err := strconv.ParseFloat(customerID, 64); err == nil {
		features[featCustomer] = v
	}

	quantities := historicalQuantities(history)
	n := len(quantities)

	if n >= 1 {
		features[featLag1] = quantities[n-1]
	}
	if n >= 3 {
		features[featLag3] = quantities[n-3]
		features[featMovingAvg3] = (quantities[n-1] + quantities[n-2] + quantities[n-3]) / 3
	}

	return features
}

// historicalQuantities extracts predicted quantities from history, keeping
// the ascending period order. Records without a value contribute 0 so the
// lag offsets stay aligned with the period sequence.
func historicalQuantities(history []*prediction.PredictionRecord) []float64 {
	out := make([]float64, 0, len(history))
	for _, rec := range history {
		if rec.PredictedQty != nil {
			out = append(out, *rec.PredictedQty)
		} else {
			out = append(out, 0)
		}
	}
	return out
}

// assemble builds the input vector in exactly the artifact's feature order.
// Features the model requires but DeriveFeatures does not produce are 0.
func assemble(features map[string]float64, order []string) []float64 {
	vec := make([]float64, len(order))
	for i, name := range order {
		vec[i] = features[name]
	}
	return vec
}
