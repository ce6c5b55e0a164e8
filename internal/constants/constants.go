package constants

const KBolzmann float64 = 1.380649e-23         // [J/K]
const ElectronCharge = 1.602176634e-19         // C
const KBolzmannEV = KBolzmann / ElectronCharge // [eV/K]
